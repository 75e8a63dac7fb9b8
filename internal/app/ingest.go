package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"gymdir/internal/adapters/observability"
	"gymdir/internal/domain"
)

// IngestionService stores feed items as new candidates. Items whose source
// URL is already known are skipped so that re-running a feed is harmless.
type IngestionService struct {
	feed     domain.FeedClient
	store    domain.Store
	pageSize int
}

func NewIngestionService(f domain.FeedClient, store domain.Store, pageSize int) *IngestionService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &IngestionService{feed: f, store: store, pageSize: pageSize}
}

// FetchPage returns the feed page after cursor; an empty cursor starts at the top.
func (s *IngestionService) FetchPage(ctx context.Context, cursor string) (domain.FeedPage, error) {
	p, err := s.feed.GetCandidates(ctx, cursor, s.pageSize)
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("fetch feed page %q: %w", cursor, err)
	}
	return p, nil
}

// Ingest maps and stores one feed item. created is false when the source URL
// was already ingested; the existing candidate is returned then.
func (s *IngestionService) Ingest(ctx context.Context, raw map[string]any) (c domain.Candidate, created bool, err error) {
	c, err = mapCandidate(raw)
	if err != nil {
		observability.ObserveIngest("invalid")
		return domain.Candidate{}, false, err
	}

	existing, err := s.store.CandidateBySourceURL(ctx, c.SourceURL)
	switch {
	case err == nil:
		observability.ObserveIngest("known")
		log.Debug().Int64("candidate_id", existing.ID).Str("source_url", c.SourceURL).Msg("candidate already ingested")
		return existing, false, nil
	case !isNotFound(err):
		observability.ObserveIngest("error")
		return domain.Candidate{}, false, err
	}

	stored, err := s.store.CreateCandidate(ctx, c)
	if err != nil {
		observability.ObserveIngest("error")
		return domain.Candidate{}, false, fmt.Errorf("store candidate %s: %w", c.SourceURL, err)
	}
	observability.ObserveIngest("created")
	return stored, true, nil
}

// IngestPage ingests every item of p sequentially and returns the ids of the
// candidates it created. Invalid items are logged and skipped.
func (s *IngestionService) IngestPage(ctx context.Context, p domain.FeedPage) ([]int64, error) {
	var created []int64
	for i, raw := range p.Items {
		c, ok, err := s.Ingest(ctx, raw)
		if errors.Is(err, domain.ErrInvalidPayload) {
			log.Warn().Err(err).Int("item", i).Msg("feed item skipped")
			continue
		}
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, c.ID)
		}
	}
	return created, nil
}
