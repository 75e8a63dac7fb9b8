package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"gymdir/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	similarLimit     = 5
)

type QueryService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(s domain.Store, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: s, cache: c, cacheTTL: ttl}
}

// ListQuery filters the review queue. Cursor is the opaque NextCursor of
// the previous page.
type ListQuery struct {
	Status *domain.CandidateStatus
	Region *string
	City   *string
	Q      *string
	Cursor string
	Limit  int
}

// ListCandidates pages newest first, strictly by decreasing id.
func (s *QueryService) ListCandidates(ctx context.Context, q ListQuery) (domain.CandidatePage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	before, err := DecodeCursor(q.Cursor)
	if err != nil {
		return domain.CandidatePage{}, err
	}
	if q.Status != nil && !q.Status.Valid() {
		return domain.CandidatePage{}, domain.NewPayloadError("status", fmt.Sprintf("unknown status %q", *q.Status))
	}

	// one extra row tells whether another page exists
	items, err := s.store.ListCandidates(ctx, domain.CandidateQuery{
		Status:   q.Status,
		Region:   q.Region,
		City:     q.City,
		Q:        q.Q,
		BeforeID: before,
		Limit:    limit + 1,
	})
	if err != nil {
		return domain.CandidatePage{}, err
	}
	out := domain.CandidatePage{Items: items}
	if len(items) > limit {
		out.Items = items[:limit]
		next := EncodeCursor(out.Items[limit-1].ID)
		out.NextCursor = &next
	}
	return out, nil
}

// GetDetail returns a candidate with up to five similar catalog gyms. Only
// the candidate is cached; any approval can add a similar gym, so that list
// is read from the store every time.
func (s *QueryService) GetDetail(ctx context.Context, id int64) (domain.CandidateDetail, error) {
	c, err := s.candidate(ctx, id)
	if err != nil {
		return domain.CandidateDetail{}, err
	}
	similar, err := s.store.SimilarGyms(ctx, c, similarLimit)
	if err != nil {
		return domain.CandidateDetail{}, err
	}
	return domain.CandidateDetail{Candidate: c, Similar: similar}, nil
}

func (s *QueryService) candidate(ctx context.Context, id int64) (domain.Candidate, error) {
	key := detailKey(id)
	var c domain.Candidate
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &c); ok {
			return c, nil
		}
	}
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, c, int(s.cacheTTL.Seconds()))
	}
	return c, nil
}

// GymDetail is a catalog gym with its equipment inventory.
type GymDetail struct {
	Gym       domain.Gym
	Equipment []domain.EquipmentLink
}

func (s *QueryService) GetGym(ctx context.Context, id int64) (GymDetail, error) {
	g, err := s.store.GetGym(ctx, id)
	if err != nil {
		return GymDetail{}, err
	}
	links, err := s.store.EquipmentLinks(ctx, id)
	if err != nil {
		return GymDetail{}, err
	}
	return GymDetail{Gym: g, Equipment: links}, nil
}

func detailKey(id int64) string { return fmt.Sprintf("candidate:%d", id) }

// EncodeCursor hides the last-seen id behind url-safe base64.
func EncodeCursor(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeCursor returns 0 for an empty cursor.
func DecodeCursor(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, domain.NewPayloadError("cursor", "is malformed")
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewPayloadError("cursor", "is malformed")
	}
	return id, nil
}
