package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

type Strategy string

const (
	StrategyOverrideSlug Strategy = "override-slug"
	StrategyFacilityID   Strategy = "facility-id"
	StrategyOfficialURL  Strategy = "official-url"
	StrategyCanonicalID  Strategy = "canonical-id"
	StrategyAddressName  Strategy = "address-name"
)

var (
	approvalChain = []Strategy{StrategyOverrideSlug, StrategyFacilityID, StrategyOfficialURL, StrategyCanonicalID}
	classifyChain = []Strategy{StrategyFacilityID, StrategyOfficialURL, StrategyAddressName}
)

type Match struct {
	Gym      domain.Gym
	Strategy Strategy
}

// Matcher resolves a candidate to at most one catalog gym. Structural
// identifiers (slug, facility id, URL, fingerprint) are tried before fuzzy
// text; the first strategy that hits wins.
type Matcher struct {
	policy Policy
}

func NewMatcher(p Policy) *Matcher {
	return &Matcher{policy: p.withDefaults()}
}

// Resolve runs the approval chain. overrideSlug may be empty.
func (m *Matcher) Resolve(ctx context.Context, f domain.GymFinder, c domain.Candidate, overrideSlug string) (*Match, error) {
	return m.run(ctx, f, c, overrideSlug, approvalChain)
}

// Classify runs the triage chain, which adds fuzzy address+name matching for
// sources that share no identifier with the catalog.
func (m *Matcher) Classify(ctx context.Context, f domain.GymFinder, c domain.Candidate) (*Match, error) {
	return m.run(ctx, f, c, "", classifyChain)
}

func (m *Matcher) run(ctx context.Context, f domain.GymFinder, c domain.Candidate, overrideSlug string, chain []Strategy) (*Match, error) {
	for _, s := range chain {
		g, err := m.try(ctx, f, c, overrideSlug, s)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", s, err)
		}
		if g != nil {
			return &Match{Gym: *g, Strategy: s}, nil
		}
	}
	return nil, nil
}

func (m *Matcher) try(ctx context.Context, f domain.GymFinder, c domain.Candidate, overrideSlug string, s Strategy) (*domain.Gym, error) {
	switch s {
	case StrategyOverrideSlug:
		if trimmed(overrideSlug) == "" {
			return nil, nil
		}
		return found(f.GymBySlug(ctx, trimmed(overrideSlug)))
	case StrategyFacilityID:
		return m.byFacilityID(ctx, f, c)
	case StrategyOfficialURL:
		u := canonical.CanonicalURL(candidateURL(c))
		if u == "" {
			return nil, nil
		}
		return found(f.GymByOfficialURL(ctx, u))
	case StrategyCanonicalID:
		if trimmed(c.Name) == "" {
			return nil, nil
		}
		return found(f.GymByCanonicalID(ctx, canonical.Fingerprint(c.Region, c.City, c.Name)))
	case StrategyAddressName:
		return m.byAddressAndName(ctx, f, c)
	}
	return nil, fmt.Errorf("unknown strategy %q", s)
}

func (m *Matcher) byFacilityID(ctx context.Context, f domain.GymFinder, c domain.Candidate) (*domain.Gym, error) {
	for _, raw := range []string{c.SourceURL, c.Payload.OfficialURL} {
		key, ok := canonical.FacilityKey(raw)
		if !ok {
			continue
		}
		gyms, err := f.GymsByHost(ctx, canonical.URLHost(raw))
		if err != nil {
			return nil, err
		}
		for i := range gyms {
			if k, ok := canonical.FacilityKey(gyms[i].OfficialURL); ok && k == key {
				return &gyms[i], nil
			}
		}
	}
	return nil, nil
}

func (m *Matcher) byAddressAndName(ctx context.Context, f domain.GymFinder, c domain.Candidate) (*domain.Gym, error) {
	addr := canonical.NormalizeAddress(c.Address)
	name := canonical.NormalizeName(c.Name)
	if addr == "" || name == "" || c.Region == "" || c.City == "" {
		return nil, nil
	}
	gyms, err := f.GymsByCity(ctx, c.Region, c.City)
	if err != nil {
		return nil, err
	}
	var (
		best      *domain.Gym
		bestScore float64
	)
	for i := range gyms {
		if canonical.NormalizeAddress(gyms[i].Address) != addr {
			continue
		}
		other := canonical.NormalizeName(gyms[i].Name)
		score := NameSimilarity(name, other)
		if score < m.policy.NameSimilarity && !m.contains(name, other) {
			continue
		}
		if best == nil || score > bestScore {
			best, bestScore = &gyms[i], score
		}
	}
	return best, nil
}

func (m *Matcher) contains(a, b string) bool {
	short, long := a, b
	if len([]rune(short)) > len([]rune(long)) {
		short, long = long, short
	}
	return len([]rune(short)) > m.policy.MinContainmentLen && strings.Contains(long, short)
}

// NameSimilarity is the difflib sequence-matcher ratio over runes, in [0, 1].
func NameSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// candidateURL prefers the official URL the parser extracted over the page
// the candidate was scraped from.
func candidateURL(c domain.Candidate) string {
	if u := trimmed(c.Payload.OfficialURL); u != "" {
		return u
	}
	return trimmed(c.SourceURL)
}

func found(g domain.Gym, err error) (*domain.Gym, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
