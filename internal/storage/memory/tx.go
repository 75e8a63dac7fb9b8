package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

type tx struct {
	s    *Store
	st   *state
	done bool
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.s.st = t.st
	t.s.release()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.release()
	return nil
}

func (t *tx) check() error {
	if t.done {
		return errTxDone
	}
	return nil
}

func (t *tx) now() time.Time { return t.s.now().UTC() }

// ---- candidates ----

func (t *tx) LockCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	return t.GetCandidate(ctx, id)
}

func (t *tx) GetCandidate(_ context.Context, id int64) (domain.Candidate, error) {
	if err := t.check(); err != nil {
		return domain.Candidate{}, err
	}
	c, ok := t.st.candidates[id]
	if !ok {
		return domain.Candidate{}, domain.NewNotFoundError("candidate", id)
	}
	return cloneCandidate(c), nil
}

func (t *tx) SaveCandidate(_ context.Context, c domain.Candidate) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.st.candidates[c.ID]; !ok {
		return domain.NewNotFoundError("candidate", c.ID)
	}
	t.st.candidates[c.ID] = cloneCandidate(c)
	return nil
}

// ---- gym lookups ----

func (t *tx) GymBySlug(_ context.Context, slug string) (domain.Gym, error) {
	for _, id := range sortedKeys(t.st.gyms) {
		if g := t.st.gyms[id]; g.Slug == slug {
			return g, nil
		}
	}
	if r, ok := t.st.slugs[slug]; ok {
		return getGym(t.st, r.GymID)
	}
	return domain.Gym{}, domain.NewNotFoundError("gym", slug)
}

func (t *tx) GymByCanonicalID(_ context.Context, id uuid.UUID) (domain.Gym, error) {
	for _, gid := range sortedKeys(t.st.gyms) {
		if g := t.st.gyms[gid]; g.CanonicalID == id {
			return g, nil
		}
	}
	return domain.Gym{}, domain.NewNotFoundError("gym", id)
}

func (t *tx) GymByOfficialURL(_ context.Context, url string) (domain.Gym, error) {
	for _, id := range sortedKeys(t.st.gyms) {
		if g := t.st.gyms[id]; url != "" && g.OfficialURL == url {
			return g, nil
		}
	}
	return domain.Gym{}, domain.NewNotFoundError("gym", url)
}

func (t *tx) GymsByHost(_ context.Context, host string) ([]domain.Gym, error) {
	var out []domain.Gym
	for _, id := range sortedKeys(t.st.gyms) {
		if g := t.st.gyms[id]; host != "" && canonical.URLHost(g.OfficialURL) == host {
			out = append(out, g)
		}
	}
	return out, nil
}

func (t *tx) GymsByCity(_ context.Context, region, city string) ([]domain.Gym, error) {
	var out []domain.Gym
	for _, id := range sortedKeys(t.st.gyms) {
		if g := t.st.gyms[id]; g.Region == region && g.City == city {
			out = append(out, g)
		}
	}
	return out, nil
}

func (t *tx) GetGym(_ context.Context, id int64) (domain.Gym, error) {
	return getGym(t.st, id)
}

// LockGym is GetGym: the tx already holds the store lock.
func (t *tx) LockGym(ctx context.Context, id int64) (domain.Gym, error) {
	return t.GetGym(ctx, id)
}

// ---- gym writes ----

func (t *tx) uniqueGym(g domain.Gym) error {
	for _, other := range t.st.gyms {
		if other.ID == g.ID {
			continue
		}
		if other.Slug == g.Slug {
			return domain.NewConflictError("gym", fmt.Sprintf("slug %q already taken", g.Slug))
		}
		if other.CanonicalID == g.CanonicalID {
			return domain.NewConflictError("gym", fmt.Sprintf("canonical id %s already exists", g.CanonicalID))
		}
	}
	return nil
}

func (t *tx) InsertGym(_ context.Context, g domain.Gym) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	g.ID = 0
	if err := t.uniqueGym(g); err != nil {
		return 0, err
	}
	t.st.nextGym++
	g.ID = t.st.nextGym
	g.CreatedAt, g.UpdatedAt = t.now(), t.now()
	t.st.gyms[g.ID] = g
	return g.ID, nil
}

func (t *tx) UpdateGym(_ context.Context, g domain.Gym) error {
	if err := t.check(); err != nil {
		return err
	}
	cur, ok := t.st.gyms[g.ID]
	if !ok {
		return domain.NewNotFoundError("gym", g.ID)
	}
	if err := t.uniqueGym(g); err != nil {
		return err
	}
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = t.now()
	t.st.gyms[g.ID] = g
	return nil
}

func (t *tx) SetGymFreshness(_ context.Context, gymID int64, at *time.Time) error {
	if err := t.check(); err != nil {
		return err
	}
	g, ok := t.st.gyms[gymID]
	if !ok {
		return domain.NewNotFoundError("gym", gymID)
	}
	g.LastVerifiedAt = at
	t.st.gyms[gymID] = g
	return nil
}

// ---- slug ledger ----

func (t *tx) SlugExists(_ context.Context, slug string) (bool, error) {
	if _, ok := t.st.slugs[slug]; ok {
		return true, nil
	}
	for _, g := range t.st.gyms {
		if g.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ClearCurrentSlugs(_ context.Context, gymID int64) error {
	if err := t.check(); err != nil {
		return err
	}
	for k, r := range t.st.slugs {
		if r.GymID == gymID && r.IsCurrent {
			r.IsCurrent = false
			t.st.slugs[k] = r
		}
	}
	return nil
}

func (t *tx) InsertSlugIfAbsent(_ context.Context, gymID int64, slug string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.st.slugs[slug]; ok {
		return nil
	}
	t.st.slugs[slug] = domain.SlugRecord{GymID: gymID, Slug: slug, CreatedAt: t.now()}
	return nil
}

func (t *tx) MarkSlugCurrent(_ context.Context, gymID int64, slug string) error {
	if err := t.check(); err != nil {
		return err
	}
	r, ok := t.st.slugs[slug]
	if !ok || r.GymID != gymID {
		return domain.NewConflictError("slug", fmt.Sprintf("%q does not belong to gym %d", slug, gymID))
	}
	r.IsCurrent = true
	t.st.slugs[slug] = r
	return nil
}

func (t *tx) SetGymSlug(_ context.Context, gymID int64, slug string) error {
	if err := t.check(); err != nil {
		return err
	}
	g, ok := t.st.gyms[gymID]
	if !ok {
		return domain.NewNotFoundError("gym", gymID)
	}
	g.Slug = slug
	if err := t.uniqueGym(g); err != nil {
		return err
	}
	t.st.gyms[gymID] = g
	return nil
}

func (t *tx) ListSlugs(_ context.Context, gymID int64) ([]domain.SlugRecord, error) {
	return slugsOf(t.st, gymID), nil
}

// ---- equipment ----

func (t *tx) EquipmentLinks(_ context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return linksOf(t.st, gymID), nil
}

func (t *tx) LockEquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return t.EquipmentLinks(ctx, gymID)
}

func (t *tx) InsertEquipmentLink(_ context.Context, l domain.EquipmentLink) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	if _, ok := t.st.gyms[l.GymID]; !ok {
		return 0, domain.NewNotFoundError("gym", l.GymID)
	}
	for _, other := range t.st.links {
		if other.GymID == l.GymID && other.EquipmentTypeID == l.EquipmentTypeID {
			return 0, domain.NewConflictError("equipment link", fmt.Sprintf("gym %d already has type %d", l.GymID, l.EquipmentTypeID))
		}
	}
	t.st.nextLink++
	l.ID = t.st.nextLink
	l.CreatedAt, l.UpdatedAt = t.now(), t.now()
	t.st.links[l.ID] = l
	return l.ID, nil
}

func (t *tx) UpdateEquipmentLink(_ context.Context, l domain.EquipmentLink) error {
	if err := t.check(); err != nil {
		return err
	}
	cur, ok := t.st.links[l.ID]
	if !ok {
		return domain.NewNotFoundError("equipment link", l.ID)
	}
	l.GymID, l.EquipmentTypeID = cur.GymID, cur.EquipmentTypeID
	l.CreatedAt = cur.CreatedAt
	l.UpdatedAt = t.now()
	t.st.links[l.ID] = l
	return nil
}
