package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"gymdir/internal/adapters/observability"
	"gymdir/internal/canonical"
	"gymdir/internal/domain"
	"gymdir/internal/reconcile"
)

const defaultClassifyLimit = 100

// CommandService owns every candidate mutation: manual creation, patches,
// approval, rejection and batch triage.
type CommandService struct {
	store      domain.Store
	executor   *reconcile.Executor
	classifier *reconcile.Classifier
	cache      domain.Cache
	now        func() time.Time
}

func NewCommandService(store domain.Store, ex *reconcile.Executor, clf *reconcile.Classifier, cache domain.Cache) *CommandService {
	return &CommandService{store: store, executor: ex, classifier: clf, cache: cache, now: time.Now}
}

func (s *CommandService) SetClock(now func() time.Time) { s.now = now }

// CreateManual stores an operator-authored candidate with status new.
func (s *CommandService) CreateManual(ctx context.Context, in domain.CandidateInput) (domain.Candidate, error) {
	c := domain.Candidate{
		SourceURL: strings.TrimSpace(in.SourceURL),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		Region:    canonical.Slugify(in.Region),
		City:      canonical.Slugify(in.City),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Payload:   in.Payload.Clone(),
		Status:    domain.StatusNew,
	}
	// reserved keys cannot be authored
	c.Payload.Review, c.Payload.Rejection = nil, nil
	c.Payload.OfficialURL = canonical.CanonicalURL(c.Payload.OfficialURL)

	switch {
	case c.Name == "":
		return domain.Candidate{}, domain.NewPayloadError("name", "is required")
	case c.Region == "":
		return domain.Candidate{}, domain.NewPayloadError("region", "is required")
	case c.City == "":
		return domain.Candidate{}, domain.NewPayloadError("city", "is required")
	}
	if err := validateCoords(c.Latitude, c.Longitude); err != nil {
		return domain.Candidate{}, err
	}
	if err := c.Payload.Validate(); err != nil {
		return domain.Candidate{}, err
	}

	out, err := s.store.CreateCandidate(ctx, c)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("create candidate: %w", err)
	}
	log.Info().Int64("candidate_id", out.ID).Str("region", out.Region).Str("city", out.City).Msg("manual candidate created")
	return out, nil
}

// Patch overwrites the given fields of a candidate still under review.
func (s *CommandService) Patch(ctx context.Context, id int64, p domain.CandidatePatch) (domain.Candidate, error) {
	if p.Region != nil {
		r := canonical.Slugify(*p.Region)
		p.Region = &r
	}
	if p.City != nil {
		c := canonical.Slugify(*p.City)
		p.City = &c
	}
	if p.Payload != nil {
		if err := p.Payload.Validate(); err != nil {
			return domain.Candidate{}, err
		}
	}

	var out domain.Candidate
	err := s.inTx(ctx, func(tx domain.Tx) error {
		c, err := tx.LockCandidate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status.Terminal() {
			return domain.NewConflictError("candidate", fmt.Sprintf("%d is %s and can no longer be edited", id, c.Status))
		}
		p.Apply(&c)
		c.Payload.OfficialURL = canonical.CanonicalURL(c.Payload.OfficialURL)
		if err := validateCoords(c.Latitude, c.Longitude); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()
		if err := tx.SaveCandidate(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Candidate{}, err
	}
	s.invalidate(ctx, id)
	return out, nil
}

// Approve runs the reconciliation engine for one candidate.
func (s *CommandService) Approve(ctx context.Context, id int64, req reconcile.ApproveRequest) (reconcile.Outcome, error) {
	start := time.Now()
	out, err := s.executor.Approve(ctx, id, req)

	outcome := "applied"
	switch {
	case err != nil:
		outcome = observability.LabelErr(err)
	case out.DryRun:
		outcome = "dry_run"
	}
	observability.ObserveApproval(string(out.Plan.Gym.Action), outcome, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Int64("candidate_id", id).Bool("dry_run", req.DryRun).Msg("approve failed")
		return reconcile.Outcome{}, err
	}
	if !out.DryRun {
		for action, n := range out.Plan.EquipmentCounts() {
			observability.ObserveEquipment(string(action), n)
		}
		s.invalidate(ctx, id)
	}
	return out, nil
}

// Reject moves a candidate to rejected and appends reason under the reserved
// rejection key. Rejecting again appends another reason.
func (s *CommandService) Reject(ctx context.Context, id int64, reason string) (domain.Candidate, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Candidate{}, domain.NewPayloadError("reason", "is required")
	}

	var out domain.Candidate
	err := s.inTx(ctx, func(tx domain.Tx) error {
		c, err := tx.LockCandidate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == domain.StatusApproved || c.Status == domain.StatusIgnored {
			return domain.NewConflictError("candidate", fmt.Sprintf("%d is %s", id, c.Status))
		}
		now := s.now().UTC()
		c.Payload.AppendRejection(reason, now)
		if c.Status != domain.StatusRejected {
			c.Status = domain.StatusRejected
			c.ReviewedAt = &now
		}
		c.UpdatedAt = now
		if err := tx.SaveCandidate(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Candidate{}, err
	}
	s.invalidate(ctx, id)
	log.Info().Int64("candidate_id", id).Int("reasons", len(out.Payload.Rejection.Entries)).Msg("candidate rejected")
	return out, nil
}

// Classify triages up to limit of the oldest new candidates.
func (s *CommandService) Classify(ctx context.Context, limit int) (reconcile.ClassifyResult, error) {
	if limit <= 0 {
		limit = defaultClassifyLimit
	}
	status := domain.StatusNew
	// oldest first, so the earliest candidate of a duplicate group stays new
	items, err := s.store.ListCandidates(ctx, domain.CandidateQuery{Status: &status, OldestFirst: true, Limit: limit})
	if err != nil {
		return reconcile.ClassifyResult{}, err
	}
	ids := make([]int64, 0, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	return s.ClassifyIDs(ctx, ids, 1)
}

// ClassifyIDs triages ids in one batch with up to workers candidates in
// flight. With one worker the ids are handled in order.
func (s *CommandService) ClassifyIDs(ctx context.Context, ids []int64, workers int) (reconcile.ClassifyResult, error) {
	if workers <= 0 {
		workers = 1
	}
	batch := s.classifier.NewBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			_, err := batch.Classify(gctx, id)
			return err
		})
	}
	err := g.Wait()

	res := batch.Result()
	observability.ObserveClassification(string(reconcile.VerdictNew), len(res.New))
	observability.ObserveClassification(string(reconcile.VerdictReviewing), len(res.Reviewing))
	observability.ObserveClassification(string(reconcile.VerdictDuplicate), len(res.Duplicate))
	observability.ObserveClassification(string(reconcile.VerdictSkipped), len(res.Skipped))
	for _, id := range append(append([]int64(nil), res.Reviewing...), res.Duplicate...) {
		s.invalidate(ctx, id)
	}
	log.Info().
		Int("new", len(res.New)).
		Int("reviewing", len(res.Reviewing)).
		Int("duplicate", len(res.Duplicate)).
		Int("skipped", len(res.Skipped)).
		Msg("classification batch done")
	return res, err
}

func (s *CommandService) inTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *CommandService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, detailKey(id)); err != nil {
		log.Warn().Err(err).Int64("candidate_id", id).Msg("cache invalidation failed")
	}
}

func validateCoords(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return domain.NewPayloadError("latitude/longitude", "must be given together")
	}
	if lat != nil && (*lat < -90 || *lat > 90) {
		return domain.NewPayloadError("latitude", "out of range")
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return domain.NewPayloadError("longitude", "out of range")
	}
	return nil
}

// isNotFound keeps call sites short where a miss is a normal branch.
func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
