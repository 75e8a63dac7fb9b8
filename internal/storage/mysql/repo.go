package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"gymdir/internal/canonical"
	"gymdir/internal/domain"
)

// ER_DUP_ENTRY
const errDupEntry = 1062

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
func nullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// storeErr maps driver errors onto the domain taxonomy. sql.ErrNoRows is
// handled by callers, which know the resource and id.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *driver.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return domain.NewConflictError(op, me.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewInfraError(op, err)
}

func rowErr(resource string, id any, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError(resource, id)
	}
	return storeErr(op, err)
}

// Store is the MySQL domain.Store. Timestamps are written from the Go side
// so that in-memory and MySQL runs agree on clock handling.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Begin(ctx context.Context) (domain.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin tx", err)
	}
	return &tx{q: sqlTx, sqlTx: sqlTx, now: s.now}, nil
}

func (s *Store) EquipmentTypes(ctx context.Context) ([]domain.EquipmentType, error) {
	rows, err := s.db.QueryContext(ctx, equipmentTypesSQL)
	if err != nil {
		return nil, storeErr("list equipment types", err)
	}
	defer rows.Close()

	var out []domain.EquipmentType
	for rows.Next() {
		var t domain.EquipmentType
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.Category); err != nil {
			return nil, storeErr("scan equipment type", err)
		}
		out = append(out, t)
	}
	return out, storeErr("list equipment types", rows.Err())
}

func (s *Store) CreateCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	now := s.now().UTC()
	if c.Status == "" {
		c.Status = domain.StatusNew
	}
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("encode payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, insertCandidateSQL,
		c.SourceURL,
		c.Name,
		c.Address,
		c.Region,
		c.City,
		valF64(c.Latitude),
		valF64(c.Longitude),
		string(payload),
		string(c.Status),
		now,
		now,
	)
	if err != nil {
		return domain.Candidate{}, storeErr("insert candidate", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return domain.Candidate{}, storeErr("insert candidate", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return c, nil
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (domain.Candidate, error) {
	return getCandidate(ctx, s.db, getCandidateSQL, id)
}

func (s *Store) CandidateBySourceURL(ctx context.Context, url string) (domain.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx, candidateBySourceURLSQL, url))
	if err != nil {
		return domain.Candidate{}, rowErr("candidate", url, "candidate by source url", err)
	}
	return c, nil
}

func (s *Store) ListCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	var (
		where []string
		args  []any
	)
	if q.BeforeID > 0 {
		where = append(where, "id < ?")
		args = append(args, q.BeforeID)
	}
	if q.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, q.AfterID)
	}
	if q.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*q.Status))
	}
	if q.Region != nil {
		where = append(where, "region = ?")
		args = append(args, *q.Region)
	}
	if q.City != nil {
		where = append(where, "city = ?")
		args = append(args, *q.City)
	}
	if q.Q != nil {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+*q.Q+"%")
	}

	var b strings.Builder
	b.WriteString(listCandidatesSQL)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.OldestFirst {
		b.WriteString("\nORDER BY id ASC")
	} else {
		b.WriteString("\nORDER BY id DESC")
	}
	if q.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, storeErr("list candidates", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, storeErr("scan candidate", err)
		}
		out = append(out, c)
	}
	return out, storeErr("list candidates", rows.Err())
}

func (s *Store) SimilarGyms(ctx context.Context, c domain.Candidate, limit int) ([]domain.Gym, error) {
	name := strings.TrimSpace(c.Name)
	return queryGyms(ctx, s.db, "similar gyms", similarGymsSQL, c.Region, c.City, name, name, name, limit)
}

func (s *Store) GetGym(ctx context.Context, id int64) (domain.Gym, error) {
	return getGym(ctx, s.db, id)
}

func (s *Store) EquipmentLinks(ctx context.Context, gymID int64) ([]domain.EquipmentLink, error) {
	return equipmentLinks(ctx, s.db, linksByGymSQL, gymID)
}

// ---------- shared readers ----------

func getCandidate(ctx context.Context, q querier, query string, id int64) (domain.Candidate, error) {
	c, err := scanCandidate(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.Candidate{}, rowErr("candidate", id, "get candidate", err)
	}
	return c, nil
}

func scanCandidate(s scanner) (domain.Candidate, error) {
	var (
		c        domain.Candidate
		lat, lon sql.NullFloat64
		payload  []byte
		status   string
		reviewed sql.NullTime
	)
	if err := s.Scan(
		&c.ID,
		&c.SourceURL,
		&c.Name,
		&c.Address,
		&c.Region,
		&c.City,
		&lat, &lon,
		&payload,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
		&reviewed,
	); err != nil {
		return domain.Candidate{}, err
	}
	c.Latitude, c.Longitude = nullF64(lat), nullF64(lon)
	c.Status = domain.CandidateStatus(status)
	c.ReviewedAt = nullTime(reviewed)
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &c.Payload); err != nil {
			return domain.Candidate{}, fmt.Errorf("decode payload of candidate %d: %w", c.ID, err)
		}
	}
	return c, nil
}

func getGym(ctx context.Context, q querier, id int64) (domain.Gym, error) {
	g, err := scanGym(q.QueryRowContext(ctx, getGymSQL, id))
	if err != nil {
		return domain.Gym{}, rowErr("gym", id, "get gym", err)
	}
	return g, nil
}

func queryGym(ctx context.Context, q querier, key any, query string, args ...any) (domain.Gym, error) {
	g, err := scanGym(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Gym{}, rowErr("gym", key, "find gym", err)
	}
	return g, nil
}

func queryGyms(ctx context.Context, q querier, op, query string, args ...any) ([]domain.Gym, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []domain.Gym
	for rows.Next() {
		g, err := scanGym(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, g)
	}
	return out, storeErr(op, rows.Err())
}

func scanGym(s scanner) (domain.Gym, error) {
	var (
		g         domain.Gym
		canonID   string
		lat, lon  sql.NullFloat64
		lastCheck sql.NullTime
	)
	if err := s.Scan(
		&g.ID,
		&g.Slug,
		&canonID,
		&g.Name,
		&g.Region,
		&g.City,
		&g.Address,
		&g.OfficialURL,
		&lat, &lon,
		&lastCheck,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return domain.Gym{}, err
	}
	id, err := uuid.Parse(canonID)
	if err != nil {
		return domain.Gym{}, fmt.Errorf("gym %d canonical id: %w", g.ID, err)
	}
	g.CanonicalID = id
	g.Latitude, g.Longitude = nullF64(lat), nullF64(lon)
	g.LastVerifiedAt = nullTime(lastCheck)
	g.CreatedAt, g.UpdatedAt = g.CreatedAt.UTC(), g.UpdatedAt.UTC()
	return g, nil
}

func equipmentLinks(ctx context.Context, q querier, query string, gymID int64) ([]domain.EquipmentLink, error) {
	rows, err := q.QueryContext(ctx, query, gymID)
	if err != nil {
		return nil, storeErr("list equipment links", err)
	}
	defer rows.Close()

	var out []domain.EquipmentLink
	for rows.Next() {
		var (
			l                  domain.EquipmentLink
			avail, verif       string
			count, maxCapacity sql.NullInt64
			lastCheck          sql.NullTime
		)
		if err := rows.Scan(
			&l.ID,
			&l.GymID,
			&l.EquipmentTypeID,
			&avail,
			&count,
			&maxCapacity,
			&verif,
			&lastCheck,
			&l.Source,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, storeErr("scan equipment link", err)
		}
		l.Availability = domain.Availability(avail)
		l.Verification = domain.Verification(verif)
		l.Count, l.MaxCapacity = nullInt(count), nullInt(maxCapacity)
		l.LastVerifiedAt = nullTime(lastCheck)
		l.CreatedAt, l.UpdatedAt = l.CreatedAt.UTC(), l.UpdatedAt.UTC()
		out = append(out, l)
	}
	return out, storeErr("list equipment links", rows.Err())
}

func gymArgs(g domain.Gym) []any {
	return []any{
		g.Slug,
		g.CanonicalID.String(),
		g.Name,
		g.Region,
		g.City,
		g.Address,
		g.OfficialURL,
		canonical.URLHost(g.OfficialURL),
		valF64(g.Latitude),
		valF64(g.Longitude),
		valTime(g.LastVerifiedAt),
	}
}
