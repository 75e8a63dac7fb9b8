package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"gymdir/internal/domain"
)

type GymAction string

const (
	GymCreate GymAction = "create"
	GymUpdate GymAction = "update"
	GymReuse  GymAction = "reuse"
	GymSkip   GymAction = "skip"
)

type EquipmentAction string

const (
	EquipmentInsert EquipmentAction = "insert"
	EquipmentMerge  EquipmentAction = "merge"
	EquipmentSkip   EquipmentAction = "skip"
)

type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new"`
}

// GymPlan is the proposed gym mutation. For creates GymID stays zero until
// the plan is applied; Slug and CanonicalID are the proposed values.
type GymPlan struct {
	Action      GymAction     `json:"action"`
	GymID       int64         `json:"gym_id,omitempty"`
	Slug        string        `json:"slug,omitempty"`
	CanonicalID uuid.UUID     `json:"canonical_id"`
	MatchedBy   Strategy      `json:"matched_by,omitempty"`
	Changes     []FieldChange `json:"changes,omitempty"`

	gym domain.Gym
}

// Proposed is the gym as it will look after the plan is applied.
func (g GymPlan) Proposed() domain.Gym { return g.gym }

type EquipmentPlan struct {
	Action          EquipmentAction     `json:"action"`
	Slug            string              `json:"slug"`
	EquipmentTypeID int64               `json:"equipment_type_id,omitempty"`
	LinkID          int64               `json:"link_id,omitempty"`
	Count           *int                `json:"count"`
	PreviousCount   *int                `json:"previous_count,omitempty"`
	MaxCapacity     *int                `json:"max_capacity,omitempty"`
	Availability    domain.Availability `json:"availability,omitempty"`
	Verification    domain.Verification `json:"verification,omitempty"`
	Reason          string              `json:"reason,omitempty"`

	link domain.EquipmentLink
}

// Plan is the full, side-effect-free outcome of planning one approval.
type Plan struct {
	CandidateID    int64                  `json:"candidate_id"`
	Gym            GymPlan                `json:"gym"`
	Equipment      []EquipmentPlan        `json:"equipment"`
	TerminalStatus domain.CandidateStatus `json:"terminal_status"`
	Warnings       []string               `json:"warnings,omitempty"`
	PlannedAt      time.Time              `json:"planned_at"`
}

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// EquipmentCounts tallies equipment plans by action.
func (p Plan) EquipmentCounts() map[EquipmentAction]int {
	out := make(map[EquipmentAction]int, 3)
	for _, e := range p.Equipment {
		out[e.Action]++
	}
	return out
}

// Summary is a one-line human description, used by the CLI and logs.
func (p Plan) Summary() string {
	c := p.EquipmentCounts()
	return fmt.Sprintf("gym %s %q; equipment insert=%d merge=%d skip=%d; candidate -> %s",
		p.Gym.Action, p.Gym.Slug, c[EquipmentInsert], c[EquipmentMerge], c[EquipmentSkip], p.TerminalStatus)
}
