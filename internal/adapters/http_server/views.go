package httpserver

import (
	"time"

	"gymdir/internal/app"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
)

type candidateView struct {
	ID         int64                  `json:"id"`
	SourceURL  string                 `json:"source_url,omitempty"`
	Name       string                 `json:"name"`
	Address    string                 `json:"address,omitempty"`
	Region     string                 `json:"region"`
	City       string                 `json:"city"`
	Latitude   *float64               `json:"latitude,omitempty"`
	Longitude  *float64               `json:"longitude,omitempty"`
	Payload    domain.Payload         `json:"payload"`
	Status     domain.CandidateStatus `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	ReviewedAt *time.Time             `json:"reviewed_at,omitempty"`
}

func toCandidateView(c domain.Candidate) candidateView {
	return candidateView{
		ID:         c.ID,
		SourceURL:  c.SourceURL,
		Name:       c.Name,
		Address:    c.Address,
		Region:     c.Region,
		City:       c.City,
		Latitude:   c.Latitude,
		Longitude:  c.Longitude,
		Payload:    c.Payload,
		Status:     c.Status,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		ReviewedAt: c.ReviewedAt,
	}
}

type gymView struct {
	ID             int64      `json:"id"`
	Slug           string     `json:"slug"`
	CanonicalID    string     `json:"canonical_id"`
	Name           string     `json:"name"`
	Region         string     `json:"region"`
	City           string     `json:"city"`
	Address        string     `json:"address,omitempty"`
	OfficialURL    string     `json:"official_url,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

func toGymView(g domain.Gym) gymView {
	return gymView{
		ID:             g.ID,
		Slug:           g.Slug,
		CanonicalID:    g.CanonicalID.String(),
		Name:           g.Name,
		Region:         g.Region,
		City:           g.City,
		Address:        g.Address,
		OfficialURL:    g.OfficialURL,
		Latitude:       g.Latitude,
		Longitude:      g.Longitude,
		LastVerifiedAt: g.LastVerifiedAt,
	}
}

func toGymViews(gs []domain.Gym) []gymView {
	out := make([]gymView, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGymView(g))
	}
	return out
}

type linkView struct {
	EquipmentTypeID int64               `json:"equipment_type_id"`
	Availability    domain.Availability `json:"availability"`
	Count           *int                `json:"count"`
	MaxCapacity     *int                `json:"max_capacity,omitempty"`
	Verification    domain.Verification `json:"verification"`
	LastVerifiedAt  *time.Time          `json:"last_verified_at,omitempty"`
	Source          string              `json:"source,omitempty"`
}

type candidatePageView struct {
	Items      []candidateView `json:"items"`
	NextCursor *string         `json:"next_cursor"`
}

type candidateDetailView struct {
	Candidate candidateView `json:"candidate"`
	Similar   []gymView     `json:"similar"`
}

type gymDetailView struct {
	Gym       gymView    `json:"gym"`
	Equipment []linkView `json:"equipment"`
}

func toGymDetailView(d app.GymDetail) gymDetailView {
	out := gymDetailView{Gym: toGymView(d.Gym), Equipment: make([]linkView, 0, len(d.Equipment))}
	for _, l := range d.Equipment {
		out.Equipment = append(out.Equipment, linkView{
			EquipmentTypeID: l.EquipmentTypeID,
			Availability:    l.Availability,
			Count:           l.Count,
			MaxCapacity:     l.MaxCapacity,
			Verification:    l.Verification,
			LastVerifiedAt:  l.LastVerifiedAt,
			Source:          l.Source,
		})
	}
	return out
}

type outcomeView struct {
	reconcile.Outcome
	Gym *gymView `json:"gym,omitempty"`
}

func toOutcomeView(o reconcile.Outcome) outcomeView {
	out := outcomeView{Outcome: o}
	if o.Gym != nil {
		g := toGymView(*o.Gym)
		out.Gym = &g
	}
	return out
}

// ---- request bodies ----

type candidateInput struct {
	SourceURL string         `json:"source_url"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	Region    string         `json:"region"`
	City      string         `json:"city"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	Payload   domain.Payload `json:"payload"`
}

func (in candidateInput) toDomain() domain.CandidateInput {
	return domain.CandidateInput{
		SourceURL: in.SourceURL,
		Name:      in.Name,
		Address:   in.Address,
		Region:    in.Region,
		City:      in.City,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Payload:   in.Payload,
	}
}

type candidatePatch struct {
	SourceURL *string         `json:"source_url"`
	Name      *string         `json:"name"`
	Address   *string         `json:"address"`
	Region    *string         `json:"region"`
	City      *string         `json:"city"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	Payload   *domain.Payload `json:"payload"`
}

func (p candidatePatch) toDomain() domain.CandidatePatch {
	return domain.CandidatePatch{
		SourceURL: p.SourceURL,
		Name:      p.Name,
		Address:   p.Address,
		Region:    p.Region,
		City:      p.City,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Payload:   p.Payload,
	}
}

type approveBody struct {
	Override *struct {
		GymSlug     string   `json:"gym_slug"`
		Name        *string  `json:"name"`
		Address     *string  `json:"address"`
		OfficialURL *string  `json:"official_url"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	} `json:"override"`
	EquipmentOverrides []domain.EquipmentItem `json:"equipment_overrides"`
	DryRun             bool                   `json:"dry_run"`
}

func (b approveBody) toRequest() reconcile.ApproveRequest {
	req := reconcile.ApproveRequest{EquipmentOverrides: b.EquipmentOverrides, DryRun: b.DryRun}
	if o := b.Override; o != nil {
		req.Override = &reconcile.Override{
			GymSlug:     o.GymSlug,
			Name:        o.Name,
			Address:     o.Address,
			OfficialURL: o.OfficialURL,
			Latitude:    o.Latitude,
			Longitude:   o.Longitude,
		}
	}
	return req
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type classifyBody struct {
	Limit int `json:"limit"`
}
