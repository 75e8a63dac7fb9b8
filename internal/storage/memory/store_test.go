package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
	"gymdir/internal/storage/memory"
)

func gym(slug, name string) domain.Gym {
	return domain.Gym{Slug: slug, Name: name, Region: "tokyo", City: "koto", CanonicalID: canonical.Fingerprint("tokyo", "koto", name)}
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertGym(ctx, gym("a", "A"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")
	assert.Error(t, tx.Commit())

	gyms, _, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, gyms)
}

func TestStore_UniqueKeys(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	id, err := tx.InsertGym(ctx, gym("a", "A"))
	require.NoError(t, err)

	_, err = tx.InsertGym(ctx, gym("a", "B"))
	assert.ErrorIs(t, err, domain.ErrConflict, "slug")

	dupFP := gym("b", "A")
	_, err = tx.InsertGym(ctx, dupFP)
	assert.ErrorIs(t, err, domain.ErrConflict, "canonical id")

	l := domain.EquipmentLink{GymID: id, EquipmentTypeID: 1, Availability: domain.AvailabilityPresent}
	_, err = tx.InsertEquipmentLink(ctx, l)
	require.NoError(t, err)
	_, err = tx.InsertEquipmentLink(ctx, l)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = tx.InsertEquipmentLink(ctx, domain.EquipmentLink{GymID: 77, EquipmentTypeID: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SlugLedgerKeepsOneCurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	id, err := tx.InsertGym(ctx, gym("first", "A"))
	require.NoError(t, err)
	other, err := tx.InsertGym(ctx, gym("other", "B"))
	require.NoError(t, err)
	for _, slug := range []string{"first", "second", "first", "third"} {
		require.NoError(t, canonical.SetCurrentSlug(ctx, tx, id, slug))
	}
	require.NoError(t, canonical.SetCurrentSlug(ctx, tx, other, "other"))
	require.NoError(t, tx.Commit())

	// a slug in another gym's history cannot be claimed
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, canonical.SetCurrentSlug(ctx, tx, other, "second"), domain.ErrConflict)
	require.NoError(t, tx.Rollback())

	recs, err := s.Slugs(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	current := 0
	for _, r := range recs {
		if r.IsCurrent {
			current++
			assert.Equal(t, "third", r.Slug)
		}
	}
	assert.Equal(t, 1, current)

	g, err := s.GetGym(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "third", g.Slug)
}

func TestStore_ListCandidates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for _, c := range []domain.Candidate{
		{Name: "Alpha", Region: "tokyo", City: "koto"},
		{Name: "Beta", Region: "tokyo", City: "chuo"},
		{Name: "Alpha Annex", Region: "tokyo", City: "koto"},
		{Name: "Gamma", Region: "osaka", City: "kita", Status: domain.StatusReviewing},
	} {
		_, err := s.CreateCandidate(ctx, c)
		require.NoError(t, err)
	}

	all, err := s.ListCandidates(ctx, domain.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(4), all[0].ID, "newest first")

	page, err := s.ListCandidates(ctx, domain.CandidateQuery{BeforeID: 3, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID)

	oldest, err := s.ListCandidates(ctx, domain.CandidateQuery{OldestFirst: true, AfterID: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, []int64{2, 3}, []int64{oldest[0].ID, oldest[1].ID})

	q := "alpha"
	city := "koto"
	hits, err := s.ListCandidates(ctx, domain.CandidateQuery{Q: &q, City: &city})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	st := domain.StatusReviewing
	hits, err = s.ListCandidates(ctx, domain.CandidateQuery{Status: &st})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Gamma", hits[0].Name)
}

// Any open tx blocks every other Begin, even for unrelated rows.
func TestStore_BeginHonoursContext(t *testing.T) {
	s := memory.New()
	_, err := s.CreateCandidate(context.Background(), domain.Candidate{Name: "A", Region: "tokyo", City: "koto"})
	require.NoError(t, err)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// plain reads wait for the same lock
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = s.GetCandidate(ctx2, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_CandidateCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c, err := s.CreateCandidate(ctx, domain.Candidate{
		Name:    "A",
		Payload: domain.Payload{Equipments: []domain.EquipmentItem{{Slug: "dumbbell"}}},
	})
	require.NoError(t, err)

	c.Payload.Equipments[0].Slug = "mutated"
	got, err := s.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "dumbbell", got.Payload.Equipments[0].Slug)
}
