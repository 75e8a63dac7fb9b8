package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
	"gymdir/internal/storage/memory"
)

// ---- fakes ----

// fakeCache stores JSON like the redis adapter does, so cached values lose
// their identity with the originals.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	hits  int
	dels  int
	err   error
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels++
	delete(c.store, key)
	return c.err
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakeFeed struct {
	pages map[string]domain.FeedPage
	calls []string
}

func (f *fakeFeed) GetCandidates(ctx context.Context, cursor string, limit int) (domain.FeedPage, error) {
	f.calls = append(f.calls, cursor)
	p, ok := f.pages[cursor]
	if !ok {
		return domain.FeedPage{}, domain.NewNotFoundError("feed page", cursor)
	}
	return p, nil
}

// ---- wiring ----

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	store *memory.Store
	cache *fakeCache
	cmd   *app.CommandService
	q     *app.QueryService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return t0 }

	store := memory.New()
	store.SetClock(clock)
	policy := reconcile.DefaultPolicy()
	matcher := reconcile.NewMatcher(policy)
	ex := reconcile.NewExecutor(store, matcher, reconcile.NewPlanner(store, policy))
	ex.SetClock(clock)
	clf := reconcile.NewClassifier(store, matcher)
	clf.SetClock(clock)

	cache := newFakeCache()
	cmd := app.NewCommandService(store, ex, clf, cache)
	cmd.SetClock(clock)
	return &env{store: store, cache: cache, cmd: cmd, q: app.NewQueryService(store, cache, 10*time.Minute)}
}

func (e *env) manual(t *testing.T, name string) domain.Candidate {
	t.Helper()
	c, err := e.cmd.CreateManual(context.Background(), domain.CandidateInput{
		Name:   name,
		Region: "Tokyo",
		City:   "Koto",
		Payload: domain.Payload{
			Equipments: []domain.EquipmentItem{{Slug: "smith-machine", Count: intp(1)}},
		},
	})
	if err != nil {
		t.Fatalf("CreateManual(%s): %v", name, err)
	}
	return c
}

func intp(i int) *int                                          { return &i }
func strp(s string) *string                                    { return &s }
func f64p(f float64) *float64                                  { return &f }
func statusp(s domain.CandidateStatus) *domain.CandidateStatus { return &s }
