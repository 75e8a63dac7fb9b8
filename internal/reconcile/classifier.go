package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

type Verdict string

const (
	VerdictNew       Verdict = "new"
	VerdictReviewing Verdict = "reviewing"
	VerdictDuplicate Verdict = "duplicate"
	// VerdictSkipped: the candidate was no longer new when its row was locked.
	VerdictSkipped Verdict = "skipped"
)

type ClassifyResult struct {
	New       []int64 `json:"new"`
	Reviewing []int64 `json:"reviewing"`
	Duplicate []int64 `json:"duplicate"`
	Skipped   []int64 `json:"skipped,omitempty"`
}

func (r *ClassifyResult) add(id int64, v Verdict) {
	switch v {
	case VerdictNew:
		r.New = append(r.New, id)
	case VerdictReviewing:
		r.Reviewing = append(r.Reviewing, id)
	case VerdictDuplicate:
		r.Duplicate = append(r.Duplicate, id)
	case VerdictSkipped:
		r.Skipped = append(r.Skipped, id)
	}
}

// Classifier triages fresh candidates before manual review. It only touches
// candidate status and the reserved review hint; the catalog is read-only here.
type Classifier struct {
	store   domain.Store
	matcher *Matcher
	now     func() time.Time
}

func NewClassifier(store domain.Store, m *Matcher) *Classifier {
	return &Classifier{store: store, matcher: m, now: time.Now}
}

func (c *Classifier) SetClock(now func() time.Time) { c.now = now }

// Classify runs one batch sequentially.
func (c *Classifier) Classify(ctx context.Context, ids []int64) (ClassifyResult, error) {
	b := c.NewBatch()
	for _, id := range ids {
		if _, err := b.Classify(ctx, id); err != nil {
			return b.Result(), err
		}
	}
	return b.Result(), nil
}

// Batch remembers fingerprints seen so far so that two unmatched candidates
// describing the same facility are flagged. Safe for concurrent use.
type Batch struct {
	c *Classifier

	mu     sync.Mutex
	seen   map[uuid.UUID]int64
	result ClassifyResult
}

func (c *Classifier) NewBatch() *Batch {
	return &Batch{c: c, seen: make(map[uuid.UUID]int64)}
}

func (b *Batch) Result() ClassifyResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Classify triages one candidate in its own transaction. Candidates that
// vanished or already left "new" are skipped, not failed.
func (b *Batch) Classify(ctx context.Context, id int64) (Verdict, error) {
	v, err := b.classify(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		v, err = VerdictSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("classify candidate %d: %w", id, err)
	}
	b.mu.Lock()
	b.result.add(id, v)
	b.mu.Unlock()
	return v, nil
}

func (b *Batch) classify(ctx context.Context, id int64) (Verdict, error) {
	tx, err := b.c.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	cand, err := tx.LockCandidate(ctx, id)
	if err != nil {
		return "", err
	}
	if cand.Status != domain.StatusNew {
		return VerdictSkipped, nil
	}

	m, err := b.c.matcher.Classify(ctx, tx, cand)
	if err != nil {
		return "", err
	}

	hint := &domain.ReviewHint{ClassifiedAt: b.c.now().UTC()}
	verdict := VerdictReviewing
	switch {
	case m != nil:
		hint.GymID, hint.GymSlug, hint.Strategy = m.Gym.ID, m.Gym.Slug, string(m.Strategy)
	default:
		first, dup := b.remember(cand)
		if !dup {
			return VerdictNew, nil
		}
		hint.DuplicateOf = first
		verdict = VerdictDuplicate
	}

	cand.Payload = cand.Payload.Clone()
	cand.Payload.Review = hint
	cand.Status = domain.StatusReviewing
	cand.UpdatedAt = hint.ClassifiedAt
	if err := tx.SaveCandidate(ctx, cand); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.Debug().
		Int64("candidate_id", id).
		Str("verdict", string(verdict)).
		Int64("gym_id", hint.GymID).
		Str("strategy", hint.Strategy).
		Int64("duplicate_of", hint.DuplicateOf).
		Msg("candidate classified")
	return verdict, nil
}

// remember records the candidate's fingerprint and reports the first
// candidate of this batch that had the same one.
func (b *Batch) remember(c domain.Candidate) (int64, bool) {
	if trimmed(c.Name) == "" {
		return 0, false
	}
	fp := canonical.Fingerprint(c.Region, c.City, c.Name)
	b.mu.Lock()
	defer b.mu.Unlock()
	if first, ok := b.seen[fp]; ok && first != c.ID {
		return first, true
	}
	b.seen[fp] = c.ID
	return 0, false
}
