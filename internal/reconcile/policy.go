// Package reconcile turns candidates into catalog gyms: it matches a
// candidate against the catalog, plans the resulting gym and equipment
// mutations without side effects, applies plans in one transaction, and
// triages fresh batches before manual review.
package reconcile

import (
	"strings"

	"gymdir/internal/canonical"
)

// Policy holds the tunable constants of matching and planning.
type Policy struct {
	// NameSimilarity is the minimum sequence-similarity ratio for the
	// address+name strategy.
	NameSimilarity float64
	// MinContainmentLen: name containment counts only when the shorter
	// normalized name is longer than this many runes.
	MinContainmentLen int
	// GenericTitles are article titles too vague to name a gym.
	GenericTitles []string
	// AddressFragmentMax caps the address fragment folded into new slugs.
	AddressFragmentMax int
}

func DefaultPolicy() Policy {
	return Policy{
		NameSimilarity:    0.8,
		MinContainmentLen: 5,
		GenericTitles: []string{
			"home", "top", "news", "blog", "access", "gym", "fitness",
			"training room", "facility guide",
			"トップページ", "お知らせ", "施設案内", "ジム", "トレーニングルーム", "スポーツセンター",
		},
		AddressFragmentMax: 40,
	}
}

func (p Policy) genericTitle(title string) bool {
	t := canonical.NormalizeName(title)
	if t == "" {
		return true
	}
	for _, g := range p.GenericTitles {
		if t == canonical.NormalizeName(g) {
			return true
		}
	}
	return false
}

// withDefaults fills zero values so a partially configured Policy still works.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.NameSimilarity <= 0 {
		p.NameSimilarity = d.NameSimilarity
	}
	if p.MinContainmentLen <= 0 {
		p.MinContainmentLen = d.MinContainmentLen
	}
	if p.GenericTitles == nil {
		p.GenericTitles = d.GenericTitles
	}
	if p.AddressFragmentMax <= 0 {
		p.AddressFragmentMax = d.AddressFragmentMax
	}
	return p
}

func trimmed(s string) string { return strings.TrimSpace(s) }
