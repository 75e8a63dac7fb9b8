package canonical

import (
	"context"
	"fmt"
)

// SlugLedger is the slice of a store transaction that owns slug history.
type SlugLedger interface {
	ClearCurrentSlugs(ctx context.Context, gymID int64) error
	InsertSlugIfAbsent(ctx context.Context, gymID int64, slug string) error
	MarkSlugCurrent(ctx context.Context, gymID int64, slug string) error
	SetGymSlug(ctx context.Context, gymID int64, slug string) error
}

// SetCurrentSlug makes slug the single current slug of the gym. It must run
// inside the caller's transaction so that the one-current invariant holds at
// commit. Earlier slugs stay in history as aliases.
func SetCurrentSlug(ctx context.Context, l SlugLedger, gymID int64, slug string) error {
	if err := l.ClearCurrentSlugs(ctx, gymID); err != nil {
		return fmt.Errorf("clear current slugs: %w", err)
	}
	if err := l.InsertSlugIfAbsent(ctx, gymID, slug); err != nil {
		return fmt.Errorf("insert slug %q: %w", slug, err)
	}
	if err := l.MarkSlugCurrent(ctx, gymID, slug); err != nil {
		return fmt.Errorf("mark slug %q current: %w", slug, err)
	}
	if err := l.SetGymSlug(ctx, gymID, slug); err != nil {
		return fmt.Errorf("update gym slug: %w", err)
	}
	return nil
}
