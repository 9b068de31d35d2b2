package entity

import (
	"time"

	"github.com/google/uuid"
)

// Status models the moderation lifecycle of an establishment.
type Status string

// Lifecycle states. Only active establishments are visible to search.
const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
	StatusArchived  Status = "archived"
)

var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusArchived},
	StatusPending:   {StatusActive, StatusRejected, StatusArchived},
	StatusActive:    {StatusSuspended, StatusArchived},
	StatusRejected:  {StatusPending, StatusArchived},
	StatusSuspended: {StatusActive, StatusArchived},
	StatusArchived:  {},
}

// ValidStatus reports whether the value is a known lifecycle state.
func ValidStatus(value string) bool {
	_, ok := statusTransitions[Status(value)]
	return ok
}

// CanTransition reports whether the moderation lifecycle permits moving
// from one state to another.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SubscriptionTier identifies the paid plan of an establishment.
type SubscriptionTier string

// Known subscription tiers, lowest to highest.
const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
	TierElite   SubscriptionTier = "elite"
)

// ValidTier reports whether the value is a known subscription tier.
func ValidTier(value string) bool {
	switch SubscriptionTier(value) {
	case TierFree, TierPremium, TierElite:
		return true
	}
	return false
}

// Establishment represents a place of business in the catalogue.
type Establishment struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Description      *string          `json:"description,omitempty"`
	Address          string           `json:"address"`
	City             *string          `json:"city,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	Website          *string          `json:"website,omitempty"`
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	Categories       []string         `json:"categories"`
	Cuisines         []string         `json:"cuisines,omitempty"`
	PriceTier        *string          `json:"price_tier,omitempty"`
	Features         []string         `json:"features,omitempty"`
	HoursWindows     []string         `json:"hours_windows,omitempty"`
	Rating           *float64         `json:"rating,omitempty"`
	ReviewCount      *int             `json:"review_count,omitempty"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	Status           Status           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// RankedEstablishment is the read-only search projection: an establishment
// plus the score and distance computed inside the search query. It is never
// persisted.
type RankedEstablishment struct {
	Establishment
	Score          float64 `json:"score"`
	DistanceMeters float64 `json:"distance_m"`
}

// MapPoint is the compact map-view projection: coordinates plus minimal
// identity, deliberately omitting heavy fields to keep panning responses
// small.
type MapPoint struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Score     float64   `json:"score"`
}
