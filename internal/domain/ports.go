package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GymFinder is the read side the matcher needs. Single lookups return
// ErrNotFound when nothing matches.
type GymFinder interface {
	// GymBySlug resolves current slugs first, then slug history.
	GymBySlug(ctx context.Context, slug string) (Gym, error)
	GymByCanonicalID(ctx context.Context, id uuid.UUID) (Gym, error)
	GymByOfficialURL(ctx context.Context, url string) (Gym, error)
	GymsByHost(ctx context.Context, host string) ([]Gym, error)
	GymsByCity(ctx context.Context, region, city string) ([]Gym, error)
}

// Tx is one store transaction. Every write of an approval goes through a
// single Tx; Rollback after Commit is a no-op.
type Tx interface {
	GymFinder

	// LockCandidate blocks until the row lock is held for the rest of the tx.
	LockCandidate(ctx context.Context, id int64) (Candidate, error)
	GetCandidate(ctx context.Context, id int64) (Candidate, error)
	SaveCandidate(ctx context.Context, c Candidate) error

	GetGym(ctx context.Context, id int64) (Gym, error)
	// LockGym and LockEquipmentLinks read the latest committed rows and hold
	// their locks until the tx ends, so approvals into one gym serialize.
	LockGym(ctx context.Context, id int64) (Gym, error)
	LockEquipmentLinks(ctx context.Context, gymID int64) ([]EquipmentLink, error)
	InsertGym(ctx context.Context, g Gym) (int64, error)
	UpdateGym(ctx context.Context, g Gym) error
	SetGymFreshness(ctx context.Context, gymID int64, at *time.Time) error

	// slug ledger primitives
	SlugExists(ctx context.Context, slug string) (bool, error)
	ClearCurrentSlugs(ctx context.Context, gymID int64) error
	InsertSlugIfAbsent(ctx context.Context, gymID int64, slug string) error
	MarkSlugCurrent(ctx context.Context, gymID int64, slug string) error
	SetGymSlug(ctx context.Context, gymID int64, slug string) error
	ListSlugs(ctx context.Context, gymID int64) ([]SlugRecord, error)

	EquipmentLinks(ctx context.Context, gymID int64) ([]EquipmentLink, error)
	InsertEquipmentLink(ctx context.Context, l EquipmentLink) (int64, error)
	UpdateEquipmentLink(ctx context.Context, l EquipmentLink) error

	Commit() error
	Rollback() error
}

type Store interface {
	Begin(ctx context.Context) (Tx, error)

	CreateCandidate(ctx context.Context, c Candidate) (Candidate, error)
	GetCandidate(ctx context.Context, id int64) (Candidate, error)
	CandidateBySourceURL(ctx context.Context, url string) (Candidate, error)
	ListCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
	SimilarGyms(ctx context.Context, c Candidate, limit int) ([]Gym, error)
	GetGym(ctx context.Context, id int64) (Gym, error)
	EquipmentLinks(ctx context.Context, gymID int64) ([]EquipmentLink, error)
}

// EquipmentCatalog is the read-only equipment vocabulary.
type EquipmentCatalog interface {
	EquipmentTypes(ctx context.Context) ([]EquipmentType, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// FeedClient pages through normalized candidates exported by the parser service.
type FeedClient interface {
	GetCandidates(ctx context.Context, cursor string, limit int) (FeedPage, error)
}

type FeedPage struct {
	Items      []map[string]any
	NextCursor string
}

// CandidateQuery lists candidates newest first, or oldest first with
// OldestFirst. BeforeID and AfterID are exclusive bounds; zero means unbounded.
type CandidateQuery struct {
	Status      *CandidateStatus
	Region      *string
	City        *string
	Q           *string
	BeforeID    int64
	AfterID     int64
	OldestFirst bool
	Limit       int
}

type CandidatePage struct {
	Items      []Candidate
	NextCursor *string
}

type CandidateDetail struct {
	Candidate Candidate
	Similar   []Gym
}
