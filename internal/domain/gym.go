package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gym is the canonical catalog entity.
type Gym struct {
	ID             int64
	Slug           string
	CanonicalID    uuid.UUID
	Name           string
	Region         string
	City           string
	Address        string
	OfficialURL    string
	Latitude       *float64
	Longitude      *float64
	LastVerifiedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SlugRecord struct {
	GymID     int64
	Slug      string
	IsCurrent bool
	CreatedAt time.Time
}

type EquipmentType struct {
	ID       int64
	Slug     string
	Name     string
	Category string
}

type Availability string

const (
	AvailabilityUnknown Availability = "unknown"
	AvailabilityAbsent  Availability = "absent"
	AvailabilityPresent Availability = "present"
)

type Verification string

const (
	VerificationUnverified Verification = "unverified"
	VerificationVerified   Verification = "verified"
	VerificationCurated    Verification = "curated"
)

// Rank orders verification levels; unknown values rank lowest.
func (v Verification) Rank() int {
	switch v {
	case VerificationVerified:
		return 1
	case VerificationCurated:
		return 2
	}
	return 0
}

type EquipmentLink struct {
	ID              int64
	GymID           int64
	EquipmentTypeID int64
	Availability    Availability
	Count           *int
	MaxCapacity     *int
	Verification    Verification
	LastVerifiedAt  *time.Time
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Coords struct{ Lat, Lon float64 }
