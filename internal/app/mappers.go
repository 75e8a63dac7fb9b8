package app

import (
	"strconv"
	"strings"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

/********** alias registries (single source of truth) **********/

var candidateAliases = map[string][]string{
	"source_url":   {"source_url", "url", "page_url", "source.url"},
	"name":         {"name", "facility_name", "gym_name", "facility.name"},
	"address":      {"address", "address_raw", "full_address", "location.address", "facility.address"},
	"region":       {"region", "prefecture", "pref", "location.region", "location.prefecture"},
	"city":         {"city", "ward", "municipality", "location.city", "location.ward"},
	"official_url": {"official_url", "website", "homepage", "official.url", "facility.website"},
	"page_type":    {"meta.page_type", "page_type", "kind"},
	"title":        {"meta.title", "title", "page_title"},
}

var (
	latPaths       = []string{"latitude", "lat", "location.lat", "location.latitude"}
	lonPaths       = []string{"longitude", "lon", "lng", "location.lon", "location.lng", "location.longitude"}
	createGymPaths = []string{"meta.create_gym", "create_gym"}
	equipmentPaths = []string{"equipments", "equipment", "facility.equipments"}

	itemSlugPaths     = []string{"slug", "type", "name"}
	itemCountPaths    = []string{"count", "quantity", "qty"}
	itemCapacityPaths = []string{"max_capacity", "max_weight", "capacity"}
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "35,6").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstIntFlexible: int from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int(v)
			return &x
		case int:
			x := v
			return &x
		case int64:
			x := int(v)
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstBoolFlexible accepts JSON booleans and "true"/"false"/"1"/"0" strings.
func firstBoolFlexible(m map[string]any, paths ...string) *bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			b := v
			return &b
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return &b
			}
		}
	}
	return nil
}

// firstSliceAny returns the first non-empty list found under paths.
func firstSliceAny(m map[string]any, paths ...string) []any {
	for _, k := range paths {
		if raw, ok := lookupAny(m, k).([]any); ok && len(raw) > 0 {
			return raw
		}
	}
	return nil
}

// topLevelKnownFromAliases builds a set of top-level keys to exclude from attributes.
func topLevelKnownFromAliases(aliases map[string][]string, extra ...[]string) map[string]struct{} {
	set := make(map[string]struct{}, 32)
	add := func(path string) {
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[:i]
		}
		set[path] = struct{}{}
	}
	for _, paths := range aliases {
		for _, p := range paths {
			add(p)
		}
	}
	for _, paths := range extra {
		for _, p := range paths {
			add(p)
		}
	}
	// reserved for the classifier and the reject flow
	set["_review"] = struct{}{}
	set["_rejection"] = struct{}{}
	return set
}

var knownTopLevel = topLevelKnownFromAliases(candidateAliases, latPaths, lonPaths, createGymPaths, equipmentPaths)

/********** candidate mapper **********/

// mapCandidate turns one feed item into a typed candidate. Unknown top-level
// keys land in Payload.Attributes; the result is validated once here.
func mapCandidate(raw map[string]any) (domain.Candidate, error) {
	c := domain.Candidate{
		SourceURL: firstNonEmptyAlias(raw, candidateAliases, "source_url"),
		Name:      firstNonEmptyAlias(raw, candidateAliases, "name"),
		Address:   firstNonEmptyAlias(raw, candidateAliases, "address"),
		Region:    canonical.Slugify(firstNonEmptyAlias(raw, candidateAliases, "region")),
		City:      canonical.Slugify(firstNonEmptyAlias(raw, candidateAliases, "city")),
		Latitude:  getFloatFlexible(raw, latPaths...),
		Longitude: getFloatFlexible(raw, lonPaths...),
		Status:    domain.StatusNew,
	}
	c.Payload = domain.Payload{
		Meta: domain.Meta{
			CreateGym: firstBoolFlexible(raw, createGymPaths...),
			PageType:  domain.PageType(strings.ToLower(firstNonEmptyAlias(raw, candidateAliases, "page_type"))),
			Title:     firstNonEmptyAlias(raw, candidateAliases, "title"),
		},
		OfficialURL: canonical.CanonicalURL(firstNonEmptyAlias(raw, candidateAliases, "official_url")),
		Equipments:  mapEquipments(firstSliceAny(raw, equipmentPaths...)),
	}

	attrs := make(map[string]any, 8)
	for k, v := range raw {
		if _, ok := knownTopLevel[k]; ok {
			continue
		}
		attrs[k] = v
	}
	if len(attrs) > 0 {
		c.Payload.Attributes = attrs
	}

	if c.SourceURL == "" {
		return domain.Candidate{}, domain.NewPayloadError("source_url", "is required for feed items")
	}
	if err := c.Payload.Validate(); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// mapEquipments accepts plain slugs or objects; slugs are normalized so
// "Smith Machine" and "smith-machine" name the same type.
func mapEquipments(raw []any) []domain.EquipmentItem {
	var out []domain.EquipmentItem
	for _, it := range raw {
		switch t := it.(type) {
		case string:
			if s := canonical.Slugify(t); s != "" {
				out = append(out, domain.EquipmentItem{Slug: s})
			}
		case map[string]any:
			var slug string
			for _, p := range itemSlugPaths {
				if s := lookupStr(t, p); s != "" {
					slug = canonical.Slugify(s)
					break
				}
			}
			if slug == "" {
				continue
			}
			out = append(out, domain.EquipmentItem{
				Slug:        slug,
				Count:       firstIntFlexible(t, itemCountPaths...),
				MaxCapacity: firstIntFlexible(t, itemCapacityPaths...),
			})
		}
	}
	return out
}
