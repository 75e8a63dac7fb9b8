// Package memory is an in-process domain.Store for tests and
// STORE_DRIVER=memory. Transactions are serialized: Begin takes a store-wide
// lock and works on a snapshot that Commit swaps in, so a held Tx behaves like
// a lock on everything, not just the candidate and gym rows it touches.
// Approvals and classifications of unrelated candidates therefore run one at
// a time here; only the MySQL store locks per row.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

var errTxDone = errors.New("memory: transaction already committed or rolled back")

// DefaultEquipmentTypes is the vocabulary used when none is supplied.
var DefaultEquipmentTypes = []domain.EquipmentType{
	{ID: 1, Slug: "smith-machine", Name: "Smith machine", Category: "strength"},
	{ID: 2, Slug: "power-rack", Name: "Power rack", Category: "strength"},
	{ID: 3, Slug: "squat-rack", Name: "Squat rack", Category: "strength"},
	{ID: 4, Slug: "bench-press", Name: "Bench press", Category: "strength"},
	{ID: 5, Slug: "dumbbell", Name: "Dumbbells", Category: "free-weights"},
	{ID: 6, Slug: "deadlift-platform", Name: "Deadlift platform", Category: "strength"},
	{ID: 7, Slug: "cable-machine", Name: "Cable machine", Category: "machines"},
	{ID: 8, Slug: "leg-press", Name: "Leg press", Category: "machines"},
	{ID: 9, Slug: "lat-pulldown", Name: "Lat pulldown", Category: "machines"},
	{ID: 10, Slug: "treadmill", Name: "Treadmill", Category: "cardio"},
	{ID: 11, Slug: "exercise-bike", Name: "Exercise bike", Category: "cardio"},
	{ID: 12, Slug: "rowing-machine", Name: "Rowing machine", Category: "cardio"},
}

type state struct {
	candidates map[int64]domain.Candidate
	gyms       map[int64]domain.Gym
	slugs      map[string]domain.SlugRecord
	links      map[int64]domain.EquipmentLink

	nextCandidate, nextGym, nextLink int64
}

func newState() *state {
	return &state{
		candidates: map[int64]domain.Candidate{},
		gyms:       map[int64]domain.Gym{},
		slugs:      map[string]domain.SlugRecord{},
		links:      map[int64]domain.EquipmentLink{},
	}
}

func (s *state) clone() *state {
	out := &state{
		candidates:    make(map[int64]domain.Candidate, len(s.candidates)),
		gyms:          make(map[int64]domain.Gym, len(s.gyms)),
		slugs:         make(map[string]domain.SlugRecord, len(s.slugs)),
		links:         make(map[int64]domain.EquipmentLink, len(s.links)),
		nextCandidate: s.nextCandidate,
		nextGym:       s.nextGym,
		nextLink:      s.nextLink,
	}
	for k, v := range s.candidates {
		out.candidates[k] = cloneCandidate(v)
	}
	for k, v := range s.gyms {
		out.gyms[k] = v
	}
	for k, v := range s.slugs {
		out.slugs[k] = v
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	return out
}

type Store struct {
	sem   chan struct{}
	st    *state
	types []domain.EquipmentType
	now   func() time.Time
}

// New returns an empty store. With no types, DefaultEquipmentTypes is used.
func New(types ...domain.EquipmentType) *Store {
	if len(types) == 0 {
		types = DefaultEquipmentTypes
	}
	return &Store{
		sem:   make(chan struct{}, 1),
		st:    newState(),
		types: append([]domain.EquipmentType(nil), types...),
		now:   time.Now,
	}
}

func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// read runs fn against the committed state while holding the store lock.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(s.st)
}

func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &tx{s: s, st: s.st.clone()}, nil
}

func (s *Store) EquipmentTypes(context.Context) ([]domain.EquipmentType, error) {
	return append([]domain.EquipmentType(nil), s.types...), nil
}

func (s *Store) CreateCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	err := s.read(ctx, func(st *state) error {
		st.nextCandidate++
		now := s.now().UTC()
		c.ID = st.nextCandidate
		if c.Status == "" {
			c.Status = domain.StatusNew
		}
		c.CreatedAt, c.UpdatedAt = now, now
		st.candidates[c.ID] = cloneCandidate(c)
		return nil
	})
	return c, err
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	var out domain.Candidate
	err := s.read(ctx, func(st *state) error {
		c, ok := st.candidates[id]
		if !ok {
			return domain.NewNotFoundError("candidate", id)
		}
		out = cloneCandidate(c)
		return nil
	})
	return out, err
}

func (s *Store) CandidateBySourceURL(ctx context.Context, url string) (domain.Candidate, error) {
	var out domain.Candidate
	err := s.read(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.candidates) {
			if c := st.candidates[id]; url != "" && c.SourceURL == url {
				out = cloneCandidate(c)
				return nil
			}
		}
		return domain.NewNotFoundError("candidate", url)
	})
	return out, err
}

func (s *Store) ListCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := s.read(ctx, func(st *state) error {
		ids := sortedKeys(st.candidates)
		if !q.OldestFirst {
			slices.Reverse(ids)
		}
		for _, id := range ids {
			c := st.candidates[id]
			if q.BeforeID > 0 && c.ID >= q.BeforeID {
				continue
			}
			if q.AfterID > 0 && c.ID <= q.AfterID {
				continue
			}
			if q.Status != nil && c.Status != *q.Status {
				continue
			}
			if q.Region != nil && c.Region != *q.Region {
				continue
			}
			if q.City != nil && c.City != *q.City {
				continue
			}
			if q.Q != nil && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(*q.Q)) {
				continue
			}
			out = append(out, cloneCandidate(c))
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) SimilarGyms(ctx context.Context, c domain.Candidate, limit int) ([]domain.Gym, error) {
	name := canonical.NormalizeName(c.Name)
	var out []domain.Gym
	err := s.read(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.gyms) {
			g := st.gyms[id]
			sameCity := c.Region != "" && g.Region == c.Region && g.City == c.City
			other := canonical.NormalizeName(g.Name)
			nameHit := name != "" && other != "" && (strings.Contains(other, name) || strings.Contains(name, other))
			if sameCity || nameHit {
				out = append(out, g)
			}
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) GetGym(ctx context.Context, id int64) (domain.Gym, error) {
	var out domain.Gym
	err := s.read(ctx, func(st *state) error {
		var err error
		out, err = getGym(st, id)
		return err
	})
	return out, err
}

func (s *Store) EquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	var out []domain.EquipmentLink
	err := s.read(ctx, func(st *state) error {
		out = linksOf(st, gymID)
		return nil
	})
	return out, err
}

// Slugs returns the slug history of a gym from committed state.
func (s *Store) Slugs(ctx context.Context, gymID int64) ([]domain.SlugRecord, error) {
	var out []domain.SlugRecord
	err := s.read(ctx, func(st *state) error {
		out = slugsOf(st, gymID)
		return nil
	})
	return out, err
}

// Counts reports committed row counts; used by tests and the dev API.
func (s *Store) Counts(ctx context.Context) (gyms, links, candidates int, err error) {
	err = s.read(ctx, func(st *state) error {
		gyms, links, candidates = len(st.gyms), len(st.links), len(st.candidates)
		return nil
	})
	return
}

func getGym(st *state, id int64) (domain.Gym, error) {
	g, ok := st.gyms[id]
	if !ok {
		return domain.Gym{}, domain.NewNotFoundError("gym", id)
	}
	return g, nil
}

func linksOf(st *state, gymID int64) []domain.EquipmentLink {
	var out []domain.EquipmentLink
	for _, id := range sortedKeys(st.links) {
		if l := st.links[id]; l.GymID == gymID {
			out = append(out, l)
		}
	}
	return out
}

func slugsOf(st *state, gymID int64) []domain.SlugRecord {
	var out []domain.SlugRecord
	for _, r := range st.slugs {
		if r.GymID == gymID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Slug < out[j].Slug
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneCandidate(c domain.Candidate) domain.Candidate {
	c.Payload = c.Payload.Clone()
	return c
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
