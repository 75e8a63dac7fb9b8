// Package canonical derives the stable identity of a gym: the name-based
// fingerprint used for dedup, and the human-readable slug with its history.
package canonical

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Namespace scopes every gym fingerprint. Changing it re-keys the catalog.
var Namespace = uuid.MustParse("0b6f5a52-3c1d-5e7a-9a41-6d2f1c8e4b90")

const keySep = "\x1f"

// boilerplate title segments dropped before hashing (compared case-folded)
var boilerplate = map[string]struct{}{
	"facility guide":       {},
	"facility information": {},
	"facilities":           {},
	"official site":        {},
	"official website":     {},
	"home":                 {},
	"top":                  {},
	"access":               {},
	"施設案内":                 {},
	"施設紹介":                 {},
	"施設情報":                 {},
	"公式サイト":                {},
	"公式ホームページ":             {},
	"トップページ":               {},
	"アクセス":                 {},
}

var (
	segmentSep    = regexp.MustCompile(`\s*\|\s*|\s+[-–—]\s+`)
	officialBadge = regexp.MustCompile(`^\s*[【\[(]\s*(?i:公式|official)\s*[】\])]\s*`)
)

// Fingerprint is a uuid v5 over the normalized (region, city, name) triple.
// It is pure: equal normalized inputs always give the same id.
func Fingerprint(region, city, name string) uuid.UUID {
	key := strings.Join([]string{
		normalizeKey(region),
		normalizeKey(city),
		NormalizeName(name),
	}, keySep)
	return uuid.NewSHA1(Namespace, []byte(key))
}

// NormalizeName applies NFKC, strips control and zero-width runes, drops
// boilerplate title segments, collapses whitespace and case-folds.
func NormalizeName(s string) string {
	s = norm.NFKC.String(s)
	s = stripInvisible(s)
	s = trimBoilerplate(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// NormalizeAddress keeps only letters and digits so that spacing and
// punctuation differences between sources do not matter.
func NormalizeAddress(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(norm.NFKC.String(s)))
}

func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// trimBoilerplate drops boilerplate segments from both ends of a title.
// Inner segments stay with their separators: "Gym - Toyosu" and
// "Gym - Kameido" are different branches.
func trimBoilerplate(s string) string {
	s = officialBadge.ReplaceAllString(s, "")
	seps := segmentSep.FindAllStringIndex(s, -1)
	if len(seps) == 0 {
		return s
	}
	type span struct{ lo, hi int }
	spans := make([]span, 0, len(seps)+1)
	lo := 0
	for _, sep := range seps {
		spans = append(spans, span{lo, sep[0]})
		lo = sep[1]
	}
	spans = append(spans, span{lo, len(s)})

	keep := func(sp span) bool {
		p := strings.TrimSpace(s[sp.lo:sp.hi])
		return p != "" && !isBoilerplate(p)
	}
	i, j := 0, len(spans)-1
	for i <= j && !keep(spans[i]) {
		i++
	}
	for j >= i && !keep(spans[j]) {
		j--
	}
	if i > j {
		return s
	}
	return s[spans[i].lo:spans[j].hi]
}

func isBoilerplate(seg string) bool {
	key := cases.Fold().String(strings.Join(strings.Fields(seg), " "))
	_, ok := boilerplate[key]
	return ok
}
