package domain

import (
	"fmt"
	"strings"
	"time"
)

type CandidateStatus string

const (
	StatusNew       CandidateStatus = "new"
	StatusReviewing CandidateStatus = "reviewing"
	StatusApproved  CandidateStatus = "approved"
	StatusRejected  CandidateStatus = "rejected"
	StatusIgnored   CandidateStatus = "ignored"
)

// Terminal reports whether the candidate has left the review queue for good.
func (s CandidateStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusIgnored
}

// Approvable reports whether an approval may still run against the candidate.
func (s CandidateStatus) Approvable() bool {
	return s == StatusNew || s == StatusReviewing
}

func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusNew, StatusReviewing, StatusApproved, StatusRejected, StatusIgnored:
		return true
	}
	return false
}

type PageType string

const (
	PageFacility PageType = "facility"
	PageArticle  PageType = "article"
	PageIndex    PageType = "index"
	PageCategory PageType = "category"
)

// Listing reports whether the page only lists other facilities.
func (p PageType) Listing() bool {
	return p == PageIndex || p == PageCategory
}

type Candidate struct {
	ID         int64
	SourceURL  string
	Name       string
	Address    string
	Region     string // lowercase ascii slug, e.g. "tokyo"
	City       string // lowercase ascii slug, e.g. "koto"
	Latitude   *float64
	Longitude  *float64
	Payload    Payload
	Status     CandidateStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ReviewedAt *time.Time
}

// EquipmentItem is one entry of the scraped equipment list.
type EquipmentItem struct {
	Slug        string `json:"slug"`
	Count       *int   `json:"count,omitempty"`
	MaxCapacity *int   `json:"max_capacity,omitempty"`
}

type Meta struct {
	// CreateGym is nil when the parser did not decide; nil means create.
	CreateGym *bool    `json:"create_gym,omitempty"`
	PageType  PageType `json:"page_type,omitempty"`
	Title     string   `json:"title,omitempty"`
}

// ReviewHint is written by the batch classifier under a reserved key.
type ReviewHint struct {
	GymID        int64     `json:"gym_id,omitempty"`
	GymSlug      string    `json:"gym_slug,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	DuplicateOf  int64     `json:"duplicate_of,omitempty"`
	ClassifiedAt time.Time `json:"classified_at"`
}

type RejectionEntry struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type Rejection struct {
	Entries []RejectionEntry `json:"entries"`
}

// Payload is the structured part of a candidate. Page-type specific
// requirements are checked by Validate.
type Payload struct {
	Meta        Meta            `json:"meta"`
	Equipments  []EquipmentItem `json:"equipments"`
	OfficialURL string          `json:"official_url,omitempty"`
	Attributes  map[string]any  `json:"attributes,omitempty"`

	Review    *ReviewHint `json:"_review,omitempty"`
	Rejection *Rejection  `json:"_rejection,omitempty"`
}

// WantsGym is false for listing pages and for payloads that opted out.
func (p Payload) WantsGym() bool {
	if p.Meta.PageType.Listing() {
		return false
	}
	return p.Meta.CreateGym == nil || *p.Meta.CreateGym
}

func (p Payload) Validate() error {
	switch p.Meta.PageType {
	case "", PageFacility, PageArticle, PageIndex, PageCategory:
	default:
		return NewPayloadError("meta.page_type", fmt.Sprintf("unknown page type %q", p.Meta.PageType))
	}
	for i, it := range p.Equipments {
		if strings.TrimSpace(it.Slug) == "" {
			return NewPayloadError(fmt.Sprintf("equipments[%d].slug", i), "must not be empty")
		}
		if it.Count != nil && *it.Count < 0 {
			return NewPayloadError(fmt.Sprintf("equipments[%d].count", i), "must not be negative")
		}
		if it.MaxCapacity != nil && *it.MaxCapacity < 0 {
			return NewPayloadError(fmt.Sprintf("equipments[%d].max_capacity", i), "must not be negative")
		}
	}
	return nil
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Payload) Clone() Payload {
	out := p
	if p.Meta.CreateGym != nil {
		v := *p.Meta.CreateGym
		out.Meta.CreateGym = &v
	}
	if p.Equipments != nil {
		out.Equipments = make([]EquipmentItem, len(p.Equipments))
		for i, it := range p.Equipments {
			out.Equipments[i] = EquipmentItem{Slug: it.Slug, Count: cloneInt(it.Count), MaxCapacity: cloneInt(it.MaxCapacity)}
		}
	}
	if p.Attributes != nil {
		out.Attributes = make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	if p.Review != nil {
		r := *p.Review
		out.Review = &r
	}
	if p.Rejection != nil {
		out.Rejection = &Rejection{Entries: append([]RejectionEntry(nil), p.Rejection.Entries...)}
	}
	return out
}

// AppendRejection records a reason without dropping earlier ones.
func (p *Payload) AppendRejection(reason string, at time.Time) {
	if p.Rejection == nil {
		p.Rejection = &Rejection{}
	}
	p.Rejection.Entries = append(p.Rejection.Entries, RejectionEntry{Reason: reason, At: at})
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CandidateInput is an operator-authored candidate.
type CandidateInput struct {
	SourceURL string
	Name      string
	Address   string
	Region    string
	City      string
	Latitude  *float64
	Longitude *float64
	Payload   Payload
}

// CandidatePatch overwrites only the non-nil fields.
type CandidatePatch struct {
	SourceURL *string
	Name      *string
	Address   *string
	Region    *string
	City      *string
	Latitude  *float64
	Longitude *float64
	Payload   *Payload
}

func (p CandidatePatch) Apply(c *Candidate) {
	if p.SourceURL != nil {
		c.SourceURL = *p.SourceURL
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Region != nil {
		c.Region = *p.Region
	}
	if p.City != nil {
		c.City = *p.City
	}
	if p.Latitude != nil {
		c.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		c.Longitude = p.Longitude
	}
	if p.Payload != nil {
		// reserved keys are owned by the classifier and reject flow
		next := p.Payload.Clone()
		next.Review = c.Payload.Review
		next.Rejection = c.Payload.Rejection
		c.Payload = next
	}
}
