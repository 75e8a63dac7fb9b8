package app_test

import (
	"context"
	"testing"
	"time"

	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
	"gymdir/internal/storage/memory"
)

func TestNewEngine_WiresVocabularyIntoPlanner(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cache := newFakeCache()
	eng := app.NewEngine(store, store, cache, reconcile.DefaultPolicy(), time.Minute)

	c, err := eng.Commands.CreateManual(ctx, domain.CandidateInput{
		Name:   "Wired Gym",
		Region: "osaka",
		City:   "kita",
		Payload: domain.Payload{
			Equipments: []domain.EquipmentItem{{Slug: "smith-machine", Count: intp(1)}},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	out, err := eng.Commands.Approve(ctx, c.ID, reconcile.ApproveRequest{DryRun: true})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := out.Plan.EquipmentCounts()[reconcile.EquipmentInsert]; got != 1 {
		t.Fatalf("want one insert, got %s", out.Plan.Summary())
	}
	if !cache.has("equipment:types") {
		t.Fatalf("planning should populate the vocabulary cache")
	}

	if err := eng.Vocabulary.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if cache.has("equipment:types") {
		t.Fatalf("vocabulary still cached after Invalidate")
	}
}
