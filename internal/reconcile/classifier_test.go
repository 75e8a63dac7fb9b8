package reconcile_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
)

func TestClassifier_TriagesBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	g := e.seedGym(t, domain.Gym{
		Slug: "chain-toyosu", Name: "Chain Fitness Toyosu", Region: "tokyo", City: "koto",
		OfficialURL: "https://chainfit.example.jp/gyms/tokyo/0123",
	})

	matched := e.candidate(t, domain.Candidate{Name: "Chain Fitness", Region: "tokyo", City: "koto", SourceURL: "https://chainfit.example.jp/gyms/tokyo/0123/"})
	fresh := e.candidate(t, domain.Candidate{Name: "Ariake Barbell", Region: "tokyo", City: "koto"})
	dup := e.candidate(t, domain.Candidate{Name: "ARIAKE  Barbell", Region: "tokyo", City: "koto"})
	done := e.candidate(t, domain.Candidate{Name: "Old", Region: "tokyo", City: "koto", Status: domain.StatusRejected})
	gymsBefore, linksBefore, _ := e.counts(t)

	res, err := e.clf.Classify(ctx, []int64{matched.ID, fresh.ID, dup.ID, done.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, []int64{fresh.ID}, res.New)
	assert.Equal(t, []int64{matched.ID}, res.Reviewing)
	assert.Equal(t, []int64{dup.ID}, res.Duplicate)
	assert.ElementsMatch(t, []int64{done.ID, 9999}, res.Skipped)

	got, err := e.store.GetCandidate(ctx, matched.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewing, got.Status)
	require.NotNil(t, got.Payload.Review)
	assert.Equal(t, g.ID, got.Payload.Review.GymID)
	assert.Equal(t, "chain-toyosu", got.Payload.Review.GymSlug)
	assert.Equal(t, string(reconcile.StrategyFacilityID), got.Payload.Review.Strategy)

	got, err = e.store.GetCandidate(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status)
	assert.Nil(t, got.Payload.Review)

	got, err = e.store.GetCandidate(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewing, got.Status)
	require.NotNil(t, got.Payload.Review)
	assert.Equal(t, fresh.ID, got.Payload.Review.DuplicateOf)

	got, err = e.store.GetCandidate(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)

	gymsAfter, linksAfter, _ := e.counts(t)
	assert.Equal(t, gymsBefore, gymsAfter, "classification never touches the catalog")
	assert.Equal(t, linksBefore, linksAfter)
}

func TestClassifier_PreservesPayload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedGym(t, domain.Gym{Slug: "indie", Name: "Indie", Region: "tokyo", City: "koto", OfficialURL: "https://indie.example.com"})
	c := e.candidate(t, domain.Candidate{
		Name: "Indie", Region: "tokyo", City: "koto",
		Payload: domain.Payload{
			OfficialURL: "https://indie.example.com/",
			Equipments:  []domain.EquipmentItem{{Slug: "power-rack", Count: intp(2)}},
			Attributes:  map[string]any{"opening_hours": "24h"},
		},
	})

	_, err := e.clf.Classify(ctx, []int64{c.ID})
	require.NoError(t, err)
	got, err := e.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "24h", got.Payload.Attributes["opening_hours"])
	require.Len(t, got.Payload.Equipments, 1)
	assert.Equal(t, "power-rack", got.Payload.Equipments[0].Slug)
	require.NotNil(t, got.Payload.Review)
	assert.Equal(t, string(reconcile.StrategyOfficialURL), got.Payload.Review.Strategy)
}

func TestBatch_ConcurrentClassify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"Alpha Gym", "Beta Gym", "Gamma Gym", "Alpha  Gym"} {
		ids = append(ids, e.candidate(t, domain.Candidate{Name: name, Region: "tokyo", City: "koto"}).ID)
	}

	b := e.clf.NewBatch()
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := b.Classify(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	res := b.Result()
	assert.Len(t, res.New, 3)
	assert.Len(t, res.Duplicate, 1)
	assert.Empty(t, res.Reviewing)
}
