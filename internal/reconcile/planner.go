package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

// PlanReader is the read-only store access planning needs.
type PlanReader interface {
	canonical.SlugChecker
	EquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error)
}

// Planner computes what an approval would change. It only reads.
type Planner struct {
	equipment domain.EquipmentCatalog
	policy    Policy
	now       func() time.Time
}

func NewPlanner(eq domain.EquipmentCatalog, p Policy) *Planner {
	return &Planner{equipment: eq, policy: p.withDefaults(), now: time.Now}
}

// SetClock replaces the time source used for verification timestamps.
func (p *Planner) SetClock(now func() time.Time) { p.now = now }

// Plan decides the gym action for c given the matcher's result (nil when
// nothing matched) and one action per equipment item.
func (p *Planner) Plan(ctx context.Context, r PlanReader, c domain.Candidate, m *Match) (Plan, error) {
	now := p.now().UTC()
	plan := Plan{CandidateID: c.ID, PlannedAt: now}

	if !c.Payload.WantsGym() {
		plan.Gym = GymPlan{Action: GymSkip}
		if m != nil {
			plan.Gym.GymID, plan.Gym.Slug, plan.Gym.MatchedBy = m.Gym.ID, m.Gym.Slug, m.Strategy
		}
		plan.TerminalStatus = domain.StatusIgnored
		return plan, nil
	}

	var err error
	if m == nil {
		plan.Gym, err = p.planCreate(ctx, r, c)
	} else {
		plan.Gym = p.planMatched(c, m)
	}
	if err != nil {
		return Plan{}, err
	}
	plan.TerminalStatus = domain.StatusApproved

	if err := p.planEquipment(ctx, r, c, &plan, now); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p *Planner) planCreate(ctx context.Context, r PlanReader, c domain.Candidate) (GymPlan, error) {
	name, region, city := trimmed(c.Name), trimmed(c.Region), trimmed(c.City)
	switch {
	case name == "":
		return GymPlan{}, domain.NewPayloadError("name", "is required to create a gym")
	case region == "":
		return GymPlan{}, domain.NewPayloadError("region", "is required to create a gym")
	case city == "":
		return GymPlan{}, domain.NewPayloadError("city", "is required to create a gym")
	}
	if c.Payload.Meta.PageType == domain.PageArticle {
		if trimmed(c.Address) == "" {
			return GymPlan{}, domain.NewPayloadError("address", "is required for article pages")
		}
		title := c.Payload.Meta.Title
		if trimmed(title) == "" {
			title = name
		}
		if p.policy.genericTitle(title) {
			return GymPlan{}, domain.NewPayloadError("meta.title", fmt.Sprintf("%q is too generic to name a gym", title))
		}
	}

	parts := []string{name, city, region}
	if frag := addressFragment(c.Address, p.policy.AddressFragmentMax); frag != "" {
		parts = append(parts, frag)
	}
	slug, err := canonical.AllocateSlug(ctx, r, strings.Join(parts, " "))
	if err != nil {
		return GymPlan{}, err
	}

	g := domain.Gym{
		Slug:        slug,
		CanonicalID: canonical.Fingerprint(region, city, name),
		Name:        name,
		Region:      region,
		City:        city,
		Address:     trimmed(c.Address),
		OfficialURL: canonical.CanonicalURL(candidateURL(c)),
	}
	if c.Latitude != nil && c.Longitude != nil {
		g.Latitude, g.Longitude = c.Latitude, c.Longitude
	}

	changes := []FieldChange{{Field: "name", New: g.Name}, {Field: "slug", New: g.Slug}}
	if g.Address != "" {
		changes = append(changes, FieldChange{Field: "address", New: g.Address})
	}
	if g.OfficialURL != "" {
		changes = append(changes, FieldChange{Field: "official_url", New: g.OfficialURL})
	}
	if g.Latitude != nil {
		changes = append(changes, FieldChange{Field: "coordinates", New: formatCoords(g.Latitude, g.Longitude)})
	}
	return GymPlan{Action: GymCreate, Slug: g.Slug, CanonicalID: g.CanonicalID, Changes: changes, gym: g}, nil
}

// planMatched fills only empty fields of the matched gym. Curated values are
// never overwritten.
func (p *Planner) planMatched(c domain.Candidate, m *Match) GymPlan {
	g := m.Gym
	var changes []FieldChange
	if g.Address == "" && trimmed(c.Address) != "" {
		g.Address = trimmed(c.Address)
		changes = append(changes, FieldChange{Field: "address", New: g.Address})
	}
	if g.OfficialURL == "" {
		if u := canonical.CanonicalURL(candidateURL(c)); u != "" {
			g.OfficialURL = u
			changes = append(changes, FieldChange{Field: "official_url", New: u})
		}
	}
	if g.Latitude == nil && g.Longitude == nil && c.Latitude != nil && c.Longitude != nil {
		g.Latitude, g.Longitude = c.Latitude, c.Longitude
		changes = append(changes, FieldChange{Field: "coordinates", New: formatCoords(g.Latitude, g.Longitude)})
	}
	action := GymReuse
	if len(changes) > 0 {
		action = GymUpdate
	}
	return GymPlan{
		Action:      action,
		GymID:       g.ID,
		Slug:        g.Slug,
		CanonicalID: g.CanonicalID,
		MatchedBy:   m.Strategy,
		Changes:     changes,
		gym:         g,
	}
}

func (p *Planner) planEquipment(ctx context.Context, r PlanReader, c domain.Candidate, plan *Plan, now time.Time) error {
	items := foldItems(c.Payload.Equipments)
	if len(items) == 0 {
		return nil
	}
	types, err := p.equipment.EquipmentTypes(ctx)
	if err != nil {
		return fmt.Errorf("load equipment types: %w", err)
	}
	bySlug := make(map[string]domain.EquipmentType, len(types))
	for _, t := range types {
		bySlug[t.Slug] = t
	}

	existing := map[int64]domain.EquipmentLink{}
	if plan.Gym.GymID != 0 {
		links, err := r.EquipmentLinks(ctx, plan.Gym.GymID)
		if err != nil {
			return fmt.Errorf("load equipment links: %w", err)
		}
		for _, l := range links {
			existing[l.EquipmentTypeID] = l
		}
	}

	source := "candidate:" + strconv.FormatInt(c.ID, 10)
	for _, it := range items {
		t, ok := bySlug[it.Slug]
		if !ok {
			plan.Equipment = append(plan.Equipment, EquipmentPlan{Action: EquipmentSkip, Slug: it.Slug, Count: it.Count, Reason: "unknown equipment type"})
			plan.warn("unknown equipment type %q skipped", it.Slug)
			continue
		}

		if cur, ok := existing[t.ID]; ok {
			next := mergeLink(cur, it, now, source)
			if it.Count != nil && cur.Count != nil && *it.Count < *cur.Count {
				plan.warn("%s: candidate count %d below existing %d, kept %d", it.Slug, *it.Count, *cur.Count, *cur.Count)
			}
			plan.Equipment = append(plan.Equipment, EquipmentPlan{
				Action:          EquipmentMerge,
				Slug:            it.Slug,
				EquipmentTypeID: t.ID,
				LinkID:          cur.ID,
				Count:           next.Count,
				PreviousCount:   cur.Count,
				MaxCapacity:     next.MaxCapacity,
				Availability:    next.Availability,
				Verification:    next.Verification,
				link:            next,
			})
			continue
		}

		ts := now
		link := domain.EquipmentLink{
			GymID:           plan.Gym.GymID,
			EquipmentTypeID: t.ID,
			Availability:    domain.AvailabilityPresent,
			Count:           it.Count,
			MaxCapacity:     it.MaxCapacity,
			Verification:    domain.VerificationVerified,
			LastVerifiedAt:  &ts,
			Source:          source,
		}
		plan.Equipment = append(plan.Equipment, EquipmentPlan{
			Action:          EquipmentInsert,
			Slug:            it.Slug,
			EquipmentTypeID: t.ID,
			Count:           link.Count,
			MaxCapacity:     link.MaxCapacity,
			Availability:    link.Availability,
			Verification:    link.Verification,
			link:            link,
		})
	}
	return nil
}

// mergeLink never lowers a count, capacity, availability or verification.
func mergeLink(cur domain.EquipmentLink, it domain.EquipmentItem, now time.Time, source string) domain.EquipmentLink {
	next := cur
	next.Count = MergeCount(cur.Count, it.Count)
	next.MaxCapacity = MergeCount(cur.MaxCapacity, it.MaxCapacity)
	next.Availability = domain.AvailabilityPresent
	if cur.Verification.Rank() < domain.VerificationVerified.Rank() {
		next.Verification = domain.VerificationVerified
	}
	ts := now
	next.LastVerifiedAt = &ts
	next.Source = source
	return next
}

// MergeCount is max over the present values; nil only when both are nil.
// It is commutative, idempotent and monotonic, so repeated or interleaved
// approvals converge on the same count.
func MergeCount(existing, incoming *int) *int {
	switch {
	case existing == nil && incoming == nil:
		return nil
	case existing == nil:
		v := *incoming
		return &v
	case incoming == nil:
		v := *existing
		return &v
	}
	v := max(*existing, *incoming)
	return &v
}

// foldItems normalizes slugs and folds duplicate entries with MergeCount,
// keeping first-seen order.
func foldItems(in []domain.EquipmentItem) []domain.EquipmentItem {
	out := make([]domain.EquipmentItem, 0, len(in))
	idx := make(map[string]int, len(in))
	for _, it := range in {
		slug := strings.ToLower(trimmed(it.Slug))
		if slug == "" {
			continue
		}
		if i, ok := idx[slug]; ok {
			out[i].Count = MergeCount(out[i].Count, it.Count)
			out[i].MaxCapacity = MergeCount(out[i].MaxCapacity, it.MaxCapacity)
			continue
		}
		idx[slug] = len(out)
		out = append(out, domain.EquipmentItem{Slug: slug, Count: it.Count, MaxCapacity: it.MaxCapacity})
	}
	return out
}

// addressFragment strips punctuation and returns the address only when it is
// shorter than limit runes.
func addressFragment(addr string, limit int) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, addr)
	clean = strings.Join(strings.Fields(clean), " ")
	if clean == "" || len([]rune(clean)) >= limit {
		return ""
	}
	return clean
}

func formatCoords(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return ""
	}
	return fmt.Sprintf("%.6f,%.6f", *lat, *lon)
}
