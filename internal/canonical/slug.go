package canonical

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxSlugLen      = 80
	maxSlugAttempts = 10000
	fallbackSlug    = "gym"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify joins parts and reduces them to lowercase ascii words separated by
// hyphens. Accents are folded; scripts with no ascii form disappear.
func Slugify(parts ...string) string {
	raw := strings.Join(parts, " ")
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, raw)
	if err != nil {
		s = raw
	}
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	return truncateSlug(strings.Trim(s, "-"), MaxSlugLen)
}

func truncateSlug(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}

type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// AllocateSlug returns base, or base-2, base-3, ... whichever is free first.
// base is slugified; an empty result falls back to "gym".
func AllocateSlug(ctx context.Context, c SlugChecker, base string) (string, error) {
	base = Slugify(base)
	if base == "" {
		base = fallbackSlug
	}
	for n := 1; n <= maxSlugAttempts; n++ {
		slug := base
		if n > 1 {
			suffix := "-" + strconv.Itoa(n)
			slug = truncateSlug(base, MaxSlugLen-len(suffix)) + suffix
		}
		taken, err := c.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
	}
	return "", fmt.Errorf("allocate slug %q: no free suffix after %d attempts", base, maxSlugAttempts)
}
