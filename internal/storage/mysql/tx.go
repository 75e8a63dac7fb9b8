package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gymdir/internal/domain"
)

type tx struct {
	q     querier
	sqlTx *sql.Tx
	now   func() time.Time
}

func (t *tx) Commit() error {
	return storeErr("commit", t.sqlTx.Commit())
}

func (t *tx) Rollback() error {
	err := t.sqlTx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return storeErr("rollback", err)
}

func (t *tx) LockCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	return getCandidate(ctx, t.q, lockCandidateSQL, id)
}

func (t *tx) GetCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	return getCandidate(ctx, t.q, getCandidateSQL, id)
}

func (t *tx) SaveCandidate(ctx context.Context, c domain.Candidate) error {
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = t.now()
	}
	_, err = t.q.ExecContext(ctx, updateCandidateSQL,
		c.SourceURL,
		c.Name,
		c.Address,
		c.Region,
		c.City,
		valF64(c.Latitude),
		valF64(c.Longitude),
		string(payload),
		string(c.Status),
		updated.UTC(),
		valTime(c.ReviewedAt),
		c.ID,
	)
	return storeErr("save candidate", err)
}

// ---------- gym lookups ----------

func (t *tx) GymBySlug(ctx context.Context, slug string) (domain.Gym, error) {
	g, err := queryGym(ctx, t.q, slug, gymByCurrentSlugSQL, slug)
	if errors.Is(err, domain.ErrNotFound) {
		return queryGym(ctx, t.q, slug, gymBySlugHistorySQL, slug)
	}
	return g, err
}

func (t *tx) GymByCanonicalID(ctx context.Context, id uuid.UUID) (domain.Gym, error) {
	return queryGym(ctx, t.q, id, gymByCanonicalIDSQL, id.String())
}

func (t *tx) GymByOfficialURL(ctx context.Context, url string) (domain.Gym, error) {
	if url == "" {
		return domain.Gym{}, domain.NewNotFoundError("gym", url)
	}
	return queryGym(ctx, t.q, url, gymByOfficialURLSQL, url)
}

func (t *tx) GymsByHost(ctx context.Context, host string) ([]domain.Gym, error) {
	if host == "" {
		return nil, nil
	}
	return queryGyms(ctx, t.q, "gyms by host", gymsByHostSQL, host)
}

func (t *tx) GymsByCity(ctx context.Context, region, city string) ([]domain.Gym, error) {
	return queryGyms(ctx, t.q, "gyms by city", gymsByCitySQL, region, city)
}

func (t *tx) GetGym(ctx context.Context, id int64) (domain.Gym, error) {
	return getGym(ctx, t.q, id)
}

func (t *tx) LockGym(ctx context.Context, id int64) (domain.Gym, error) {
	return queryGym(ctx, t.q, id, lockGymSQL, id)
}

// ---------- gym writes ----------

func (t *tx) InsertGym(ctx context.Context, g domain.Gym) (int64, error) {
	now := t.now().UTC()
	args := append(gymArgs(g), now, now)
	res, err := t.q.ExecContext(ctx, insertGymSQL, args...)
	if err != nil {
		return 0, storeErr("insert gym", err)
	}
	id, err := res.LastInsertId()
	return id, storeErr("insert gym", err)
}

func (t *tx) UpdateGym(ctx context.Context, g domain.Gym) error {
	args := append(gymArgs(g), t.now().UTC(), g.ID)
	_, err := t.q.ExecContext(ctx, updateGymSQL, args...)
	return storeErr("update gym", err)
}

func (t *tx) SetGymFreshness(ctx context.Context, gymID int64, at *time.Time) error {
	_, err := t.q.ExecContext(ctx, setGymFreshnessSQL, valTime(at), t.now().UTC(), gymID)
	return storeErr("set gym freshness", err)
}

// ---------- slug ledger ----------

func (t *tx) SlugExists(ctx context.Context, slug string) (bool, error) {
	var ok bool
	if err := t.q.QueryRowContext(ctx, slugExistsSQL, slug, slug).Scan(&ok); err != nil {
		return false, storeErr("slug exists", err)
	}
	return ok, nil
}

func (t *tx) ClearCurrentSlugs(ctx context.Context, gymID int64) error {
	_, err := t.q.ExecContext(ctx, clearCurrentSlugsSQL, gymID)
	return storeErr("clear current slugs", err)
}

func (t *tx) InsertSlugIfAbsent(ctx context.Context, gymID int64, slug string) error {
	_, err := t.q.ExecContext(ctx, insertSlugIfAbsentSQL, slug, gymID, t.now().UTC())
	return storeErr("insert slug", err)
}

func (t *tx) MarkSlugCurrent(ctx context.Context, gymID int64, slug string) error {
	res, err := t.q.ExecContext(ctx, markSlugCurrentSQL, slug, gymID)
	if err != nil {
		return storeErr("mark slug current", err)
	}
	// the row was cleared just before, so a matching row always changes
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("mark slug current", err)
	}
	if n == 0 {
		return domain.NewConflictError("slug", fmt.Sprintf("%q does not belong to gym %d", slug, gymID))
	}
	return nil
}

func (t *tx) SetGymSlug(ctx context.Context, gymID int64, slug string) error {
	_, err := t.q.ExecContext(ctx, setGymSlugSQL, slug, t.now().UTC(), gymID)
	return storeErr("set gym slug", err)
}

func (t *tx) ListSlugs(ctx context.Context, gymID int64) ([]domain.SlugRecord, error) {
	rows, err := t.q.QueryContext(ctx, listSlugsSQL, gymID)
	if err != nil {
		return nil, storeErr("list slugs", err)
	}
	defer rows.Close()

	var out []domain.SlugRecord
	for rows.Next() {
		var r domain.SlugRecord
		if err := rows.Scan(&r.GymID, &r.Slug, &r.IsCurrent, &r.CreatedAt); err != nil {
			return nil, storeErr("scan slug", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, storeErr("list slugs", rows.Err())
}

// ---------- equipment ----------

func (t *tx) EquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return equipmentLinks(ctx, t.q, linksByGymSQL, gymID)
}

func (t *tx) LockEquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return equipmentLinks(ctx, t.q, lockLinksByGymSQL, gymID)
}

func (t *tx) InsertEquipmentLink(ctx context.Context, l domain.EquipmentLink) (int64, error) {
	now := t.now().UTC()
	res, err := t.q.ExecContext(ctx, insertLinkSQL,
		l.GymID,
		l.EquipmentTypeID,
		string(l.Availability),
		valInt(l.Count),
		valInt(l.MaxCapacity),
		string(l.Verification),
		valTime(l.LastVerifiedAt),
		l.Source,
		now,
		now,
	)
	if err != nil {
		return 0, storeErr("insert equipment link", err)
	}
	id, err := res.LastInsertId()
	return id, storeErr("insert equipment link", err)
}

func (t *tx) UpdateEquipmentLink(ctx context.Context, l domain.EquipmentLink) error {
	_, err := t.q.ExecContext(ctx, updateLinkSQL,
		string(l.Availability),
		valInt(l.Count),
		valInt(l.MaxCapacity),
		string(l.Verification),
		valTime(l.LastVerifiedAt),
		l.Source,
		t.now().UTC(),
		l.ID,
	)
	return storeErr("update equipment link", err)
}
