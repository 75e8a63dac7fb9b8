package canonical_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gymdir/internal/canonical"
)

type takenSet map[string]bool

func (s takenSet) SlugExists(_ context.Context, slug string) (bool, error) { return s[slug], nil }

func TestSlugify(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"Test Gym Annex", "koto", "tokyo"}, "test-gym-annex-koto-tokyo"},
		{[]string{"Café  Gym!!"}, "cafe-gym"},
		{[]string{"--Already-Slugged--"}, "already-slugged"},
		{[]string{"江東区スポーツセンター", "koto", "tokyo"}, "koto-tokyo"},
		{[]string{"江東区スポーツセンター"}, ""},
	}
	for _, tc := range cases {
		if got := canonical.Slugify(tc.parts...); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.parts, got, tc.want)
		}
	}

	long := canonical.Slugify(strings.Repeat("gym ", 50))
	if len(long) > canonical.MaxSlugLen || strings.HasSuffix(long, "-") {
		t.Fatalf("long slug not capped cleanly: %q (%d)", long, len(long))
	}
}

func TestAllocateSlug_AppendsSuffixOnCollision(t *testing.T) {
	ctx := context.Background()
	taken := takenSet{"test-gym": true, "test-gym-2": true}

	got, err := canonical.AllocateSlug(ctx, taken, "Test Gym")
	if err != nil {
		t.Fatalf("AllocateSlug: %v", err)
	}
	if got != "test-gym-3" {
		t.Fatalf("got %q, want test-gym-3", got)
	}

	got, err = canonical.AllocateSlug(ctx, taken, "Other Gym")
	if err != nil || got != "other-gym" {
		t.Fatalf("free base should be used as-is, got %q err %v", got, err)
	}

	got, err = canonical.AllocateSlug(ctx, taken, "ジム")
	if err != nil || got != "gym" {
		t.Fatalf("empty slug should fall back to gym, got %q err %v", got, err)
	}
}

func TestAllocateSlug_SuffixRespectsLengthCap(t *testing.T) {
	base := canonical.Slugify(strings.Repeat("a", 200))
	taken := takenSet{base: true}
	got, err := canonical.AllocateSlug(context.Background(), taken, base)
	if err != nil {
		t.Fatalf("AllocateSlug: %v", err)
	}
	if len(got) > canonical.MaxSlugLen || !strings.HasSuffix(got, "-2") {
		t.Fatalf("unexpected slug %q (%d)", got, len(got))
	}
}

type failingChecker struct{}

func (failingChecker) SlugExists(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func TestAllocateSlug_PropagatesStoreErrors(t *testing.T) {
	if _, err := canonical.AllocateSlug(context.Background(), failingChecker{}, "x"); err == nil {
		t.Fatal("expected error from checker")
	}
}

// ---- ledger ----

type slugRow struct {
	gym     int64
	current bool
}

type fakeLedger struct {
	rows    map[string]*slugRow
	gymSlug map[int64]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]*slugRow{}, gymSlug: map[int64]string{}}
}

func (l *fakeLedger) ClearCurrentSlugs(_ context.Context, gymID int64) error {
	for _, r := range l.rows {
		if r.gym == gymID {
			r.current = false
		}
	}
	return nil
}

func (l *fakeLedger) InsertSlugIfAbsent(_ context.Context, gymID int64, slug string) error {
	if _, ok := l.rows[slug]; !ok {
		l.rows[slug] = &slugRow{gym: gymID}
	}
	return nil
}

func (l *fakeLedger) MarkSlugCurrent(_ context.Context, gymID int64, slug string) error {
	r, ok := l.rows[slug]
	if !ok || r.gym != gymID {
		return errors.New("slug owned by another gym")
	}
	r.current = true
	return nil
}

func (l *fakeLedger) SetGymSlug(_ context.Context, gymID int64, slug string) error {
	l.gymSlug[gymID] = slug
	return nil
}

func (l *fakeLedger) currentFor(gymID int64) []string {
	var out []string
	for s, r := range l.rows {
		if r.gym == gymID && r.current {
			out = append(out, s)
		}
	}
	return out
}

func TestSetCurrentSlug_ExactlyOneCurrent(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger()

	seq := []string{"a", "b", "a", "c", "c", "b"}
	for _, s := range seq {
		if err := canonical.SetCurrentSlug(ctx, l, 1, s); err != nil {
			t.Fatalf("SetCurrentSlug(%q): %v", s, err)
		}
		cur := l.currentFor(1)
		if len(cur) != 1 || cur[0] != s {
			t.Fatalf("after %q: current = %v", s, cur)
		}
		if l.gymSlug[1] != s {
			t.Fatalf("denormalized slug = %q, want %q", l.gymSlug[1], s)
		}
	}
	if len(l.rows) != 3 {
		t.Fatalf("history should keep a, b, c once each, got %d rows", len(l.rows))
	}

	// another gym cannot steal a slug that is already in someone's history
	if err := canonical.SetCurrentSlug(ctx, l, 2, "a"); err == nil {
		t.Fatal("expected error when claiming another gym's slug")
	}
}
