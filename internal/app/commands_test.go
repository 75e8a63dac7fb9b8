package app_test

import (
	"context"
	"errors"
	"testing"

	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
	"gymdir/internal/storage/memory"
)

func TestCreateManual_NormalizesAndValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := e.cmd.CreateManual(ctx, domain.CandidateInput{
		Name:   "  Koto Sports Center ",
		Region: "Tokyo To",
		City:   "Kōtō",
		Payload: domain.Payload{
			OfficialURL: "HTTPS://Example.com/Gym/",
			Review:      &domain.ReviewHint{GymID: 9},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if c.Name != "Koto Sports Center" || c.Region != "tokyo-to" || c.City != "koto" {
		t.Fatalf("unexpected normalization: %+v", c)
	}
	if c.Status != domain.StatusNew || c.Payload.Review != nil {
		t.Fatalf("reserved keys must not be authored: %+v", c.Payload)
	}
	if c.Payload.OfficialURL != "https://example.com/Gym" {
		t.Fatalf("official url not canonical: %q", c.Payload.OfficialURL)
	}

	bad := []domain.CandidateInput{
		{Region: "tokyo", City: "koto"},
		{Name: "X Gym", City: "koto"},
		{Name: "X Gym", Region: "tokyo"},
		{Name: "X Gym", Region: "tokyo", City: "koto", Latitude: f64p(35.6)},
		{Name: "X Gym", Region: "tokyo", City: "koto", Latitude: f64p(135), Longitude: f64p(35)},
		{Name: "X Gym", Region: "tokyo", City: "koto", Payload: domain.Payload{Meta: domain.Meta{PageType: "blog"}}},
	}
	for i, in := range bad {
		if _, err := e.cmd.CreateManual(ctx, in); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("case %d: want invalid payload, got %v", i, err)
		}
	}
	_, _, n, _ := e.store.Counts(ctx)
	if n != 1 {
		t.Fatalf("invalid input must not be stored, have %d candidates", n)
	}
}

func TestPatch_OverwritesAndKeepsReservedKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.manual(t, "Twin Gym")
	b := e.manual(t, "Twin Gym")
	if _, err := e.cmd.Classify(ctx, 0); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	p := domain.Payload{Equipments: []domain.EquipmentItem{{Slug: "power-rack", Count: intp(2)}}}
	got, err := e.cmd.Patch(ctx, b.ID, domain.CandidatePatch{City: strp("Chuo"), Payload: &p})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got.City != "chuo" || len(got.Payload.Equipments) != 1 || got.Payload.Equipments[0].Slug != "power-rack" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.Payload.Review == nil || got.Payload.Review.DuplicateOf != a.ID {
		t.Fatalf("review hint must survive a payload patch: %+v", got.Payload.Review)
	}
	stored, _ := e.store.GetCandidate(ctx, b.ID)
	if stored.City != "chuo" || stored.Status != domain.StatusReviewing {
		t.Fatalf("patch not persisted: %+v", stored)
	}
}

func TestPatch_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.manual(t, "Closed Gym")
	if _, err := e.cmd.Reject(ctx, c.ID, "closed down"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if _, err := e.cmd.Patch(ctx, c.ID, domain.CandidatePatch{Name: strp("x")}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("terminal candidate: want conflict, got %v", err)
	}
	if _, err := e.cmd.Patch(ctx, 99, domain.CandidatePatch{Name: strp("x")}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown candidate: want not found, got %v", err)
	}
	open := e.manual(t, "Open Gym")
	bad := domain.Payload{Equipments: []domain.EquipmentItem{{Slug: "dumbbell", Count: intp(-1)}}}
	if _, err := e.cmd.Patch(ctx, open.ID, domain.CandidatePatch{Payload: &bad}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("bad payload: want invalid payload, got %v", err)
	}
}

func TestReject_AppendsReasons(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.manual(t, "Spam Gym")

	first, err := e.cmd.Reject(ctx, c.ID, "not a gym")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	second, err := e.cmd.Reject(ctx, c.ID, "duplicate listing")
	if err != nil {
		t.Fatalf("second Reject: %v", err)
	}
	if second.Status != domain.StatusRejected || second.Payload.Rejection == nil || len(second.Payload.Rejection.Entries) != 2 {
		t.Fatalf("want two reasons, got %+v", second.Payload.Rejection)
	}
	if second.Payload.Rejection.Entries[0].Reason != "not a gym" || !second.ReviewedAt.Equal(*first.ReviewedAt) {
		t.Fatalf("earlier reason or review time lost: %+v", second)
	}

	if _, err := e.cmd.Approve(ctx, c.ID, reconcile.ApproveRequest{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("approving a rejected candidate: want conflict, got %v", err)
	}
	if _, err := e.cmd.Reject(ctx, c.ID, "   "); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("empty reason: want invalid payload, got %v", err)
	}
}

func TestReject_ApprovedIsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.manual(t, "Approved Gym")
	if _, err := e.cmd.Approve(ctx, c.ID, reconcile.ApproveRequest{}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := e.cmd.Reject(ctx, c.ID, "changed my mind"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestApprove_DryRunKeepsCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.manual(t, "Preview Gym")
	if _, err := e.q.GetDetail(ctx, c.ID); err != nil {
		t.Fatalf("GetDetail: %v", err)
	}

	out, err := e.cmd.Approve(ctx, c.ID, reconcile.ApproveRequest{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !out.DryRun || out.Plan.Gym.Action != reconcile.GymCreate || out.Plan.Gym.GymID != 0 {
		t.Fatalf("unexpected dry run outcome: %+v", out.Plan.Gym)
	}
	if !e.cache.has("candidate:1") {
		t.Fatalf("dry run must not evict the cached detail")
	}

	out, err = e.cmd.Approve(ctx, c.ID, reconcile.ApproveRequest{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if out.Status != domain.StatusApproved || out.Gym == nil || out.Gym.ID == 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if e.cache.has("candidate:1") {
		t.Fatalf("approval must evict the cached detail")
	}
}

func TestClassify_OldestFirstAndDuplicates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seed := e.manual(t, "Catalog Gym")
	if _, err := e.cmd.Approve(ctx, seed.ID, reconcile.ApproveRequest{}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	a := e.manual(t, "Fresh Gym")
	b := e.manual(t, "Fresh Gym")
	c := e.manual(t, "Another Gym")

	res, err := e.cmd.Classify(ctx, 0)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(res.New) != 2 || res.New[0] != a.ID || res.New[1] != c.ID {
		t.Fatalf("want %d and %d to stay new, got %+v", a.ID, c.ID, res)
	}
	if len(res.Duplicate) != 1 || res.Duplicate[0] != b.ID {
		t.Fatalf("want %d flagged as duplicate, got %+v", b.ID, res)
	}

	// the limit caps the batch at the oldest candidates
	res, err = e.cmd.Classify(ctx, 1)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(res.New) != 1 || res.New[0] != a.ID {
		t.Fatalf("want only %d, got %+v", a.ID, res)
	}
}

// listSpy records the queries the service sends to the store.
type listSpy struct {
	*memory.Store
	queries []domain.CandidateQuery
}

func (s *listSpy) ListCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	s.queries = append(s.queries, q)
	return s.Store.ListCandidates(ctx, q)
}

func TestClassify_LimitReachesTheStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var ids []int64
	for _, n := range []string{"Gym A", "Gym B", "Gym C", "Gym D", "Gym E"} {
		ids = append(ids, e.manual(t, n).ID)
	}

	spy := &listSpy{Store: e.store}
	policy := reconcile.DefaultPolicy()
	matcher := reconcile.NewMatcher(policy)
	svc := app.NewCommandService(spy,
		reconcile.NewExecutor(spy, matcher, reconcile.NewPlanner(spy, policy)),
		reconcile.NewClassifier(spy, matcher),
		nil)

	res, err := svc.Classify(ctx, 2)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(spy.queries) != 1 {
		t.Fatalf("want one list query, got %d", len(spy.queries))
	}
	q := spy.queries[0]
	if q.Limit != 2 || !q.OldestFirst || q.Status == nil || *q.Status != domain.StatusNew {
		t.Fatalf("classify query not bounded: %+v", q)
	}
	if len(res.New) != 2 || res.New[0] != ids[0] || res.New[1] != ids[1] {
		t.Fatalf("want the two oldest %v, got %+v", ids[:2], res)
	}
}

func TestClassifyIDs_Concurrent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var ids []int64
	for _, n := range []string{"Gym A", "Gym B", "Gym C", "Gym D", "Gym E", "Gym F"} {
		ids = append(ids, e.manual(t, n).ID)
	}
	ids = append(ids, 999)

	res, err := e.cmd.ClassifyIDs(ctx, ids, 4)
	if err != nil {
		t.Fatalf("ClassifyIDs: %v", err)
	}
	if len(res.New) != 6 || len(res.Skipped) != 1 || res.Skipped[0] != 999 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
