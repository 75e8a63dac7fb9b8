package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

// Override lets the operator steer one approval. Field overrides replace the
// candidate's values for planning only; the stored candidate is untouched.
type Override struct {
	GymSlug     string
	Name        *string
	Address     *string
	OfficialURL *string
	Latitude    *float64
	Longitude   *float64
}

type ApproveRequest struct {
	Override *Override
	// EquipmentOverrides replace same-slug items and append new ones.
	EquipmentOverrides []domain.EquipmentItem
	DryRun             bool
}

type Outcome struct {
	Plan   Plan                   `json:"plan"`
	Gym    *domain.Gym            `json:"-"`
	Status domain.CandidateStatus `json:"status"`
	DryRun bool                   `json:"dry_run"`
}

// Executor runs an approval end to end inside one store transaction.
type Executor struct {
	store   domain.Store
	matcher *Matcher
	planner *Planner
	now     func() time.Time
}

func NewExecutor(store domain.Store, m *Matcher, p *Planner) *Executor {
	return &Executor{store: store, matcher: m, planner: p, now: time.Now}
}

func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
	e.planner.SetClock(now)
}

// Approve locks the candidate row, plans, and applies the plan. With
// req.DryRun it reads without locking and always rolls back, so nothing
// persisted changes; the returned plan then carries proposed slugs and a zero
// GymID for creates.
func (e *Executor) Approve(ctx context.Context, id int64, req ApproveRequest) (Outcome, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var c domain.Candidate
	if req.DryRun {
		c, err = tx.GetCandidate(ctx, id)
	} else {
		c, err = tx.LockCandidate(ctx, id)
	}
	if err != nil {
		return Outcome{}, err
	}
	if !c.Status.Approvable() {
		return Outcome{}, domain.NewConflictError("candidate", fmt.Sprintf("%d is %s", id, c.Status))
	}

	working := withOverrides(c, req)
	overrideSlug := ""
	if req.Override != nil {
		overrideSlug = req.Override.GymSlug
	}
	m, err := e.matcher.Resolve(ctx, tx, working, overrideSlug)
	if err != nil {
		return Outcome{}, err
	}

	// Plan from the latest committed gym and links, and keep them locked
	// until commit, so two approvals into one gym merge instead of racing.
	var reader PlanReader = tx
	if !req.DryRun {
		reader = lockedReader{tx}
		if m != nil {
			g, err := tx.LockGym(ctx, m.Gym.ID)
			if err != nil {
				return Outcome{}, fmt.Errorf("lock gym %d: %w", m.Gym.ID, err)
			}
			m.Gym = g
		}
	}
	plan, err := e.planner.Plan(ctx, reader, working, m)
	if err != nil {
		return Outcome{}, err
	}
	if overrideSlug != "" && (m == nil || m.Strategy != StrategyOverrideSlug) {
		plan.warn("override slug %q did not resolve to a gym", overrideSlug)
	}

	if req.DryRun {
		g := plan.Gym.Proposed()
		out := Outcome{Plan: plan, Status: plan.TerminalStatus, DryRun: true}
		if plan.Gym.Action != GymSkip {
			out.Gym = &g
		}
		return out, nil
	}

	gym, err := e.apply(ctx, tx, reader, c, &plan)
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}

	log.Info().
		Int64("candidate_id", id).
		Str("action", string(plan.Gym.Action)).
		Int64("gym_id", plan.Gym.GymID).
		Str("matched_by", string(plan.Gym.MatchedBy)).
		Int("warnings", len(plan.Warnings)).
		Msg("candidate approved")
	return Outcome{Plan: plan, Gym: gym, Status: plan.TerminalStatus}, nil
}

// apply materializes plan in tx: gym, slug, equipment, freshness, candidate
// status. The caller commits; any error here leaves tx to be rolled back.
func (e *Executor) apply(ctx context.Context, tx domain.Tx, r PlanReader, c domain.Candidate, plan *Plan) (*domain.Gym, error) {
	now := e.now().UTC()

	var gym *domain.Gym
	g := plan.Gym.Proposed()
	switch plan.Gym.Action {
	case GymCreate:
		id, err := tx.InsertGym(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("insert gym: %w", err)
		}
		g.ID = id
		if err := canonical.SetCurrentSlug(ctx, tx, id, g.Slug); err != nil {
			return nil, err
		}
		gym = &g
	case GymUpdate:
		if err := tx.UpdateGym(ctx, g); err != nil {
			return nil, fmt.Errorf("update gym %d: %w", g.ID, err)
		}
		gym = &g
	case GymReuse:
		gym = &g
	}

	if gym != nil {
		plan.Gym.GymID = gym.ID
		for i := range plan.Equipment {
			ep := &plan.Equipment[i]
			switch ep.Action {
			case EquipmentInsert:
				l := ep.link
				l.GymID = gym.ID
				id, err := tx.InsertEquipmentLink(ctx, l)
				if err != nil {
					return nil, fmt.Errorf("insert equipment %s: %w", ep.Slug, err)
				}
				ep.LinkID = id
			case EquipmentMerge:
				if err := tx.UpdateEquipmentLink(ctx, ep.link); err != nil {
					return nil, fmt.Errorf("merge equipment %s: %w", ep.Slug, err)
				}
			}
		}

		fresh, err := freshness(ctx, r, gym.ID)
		if err != nil {
			return nil, err
		}
		if fresh != nil {
			if err := tx.SetGymFreshness(ctx, gym.ID, fresh); err != nil {
				return nil, fmt.Errorf("set freshness: %w", err)
			}
			gym.LastVerifiedAt = fresh
		}
	}

	c.Status = plan.TerminalStatus
	c.ReviewedAt = &now
	c.UpdatedAt = now
	if err := tx.SaveCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("save candidate %d: %w", c.ID, err)
	}
	return gym, nil
}

// lockedReader routes the planner's link reads through locking reads.
type lockedReader struct{ domain.Tx }

func (r lockedReader) EquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return r.Tx.LockEquipmentLinks(ctx, gymID)
}

// freshness is the newest last_verified across all of the gym's links.
func freshness(ctx context.Context, r PlanReader, gymID int64) (*time.Time, error) {
	links, err := r.EquipmentLinks(ctx, gymID)
	if err != nil {
		return nil, fmt.Errorf("load equipment links: %w", err)
	}
	var latest *time.Time
	for _, l := range links {
		if l.LastVerifiedAt != nil && (latest == nil || l.LastVerifiedAt.After(*latest)) {
			t := *l.LastVerifiedAt
			latest = &t
		}
	}
	return latest, nil
}

func withOverrides(c domain.Candidate, req ApproveRequest) domain.Candidate {
	c.Payload = c.Payload.Clone()
	if o := req.Override; o != nil {
		if o.Name != nil {
			c.Name = *o.Name
		}
		if o.Address != nil {
			c.Address = *o.Address
		}
		if o.OfficialURL != nil {
			c.Payload.OfficialURL = *o.OfficialURL
		}
		if o.Latitude != nil && o.Longitude != nil {
			c.Latitude, c.Longitude = o.Latitude, o.Longitude
		}
	}
	for _, ov := range req.EquipmentOverrides {
		replaced := false
		for i := range c.Payload.Equipments {
			if c.Payload.Equipments[i].Slug == ov.Slug {
				c.Payload.Equipments[i] = ov
				replaced = true
			}
		}
		if !replaced {
			c.Payload.Equipments = append(c.Payload.Equipments, ov)
		}
	}
	return c
}
