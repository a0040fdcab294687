package models

import (
	"safaribuddy/src/types"
	"time"
)

type Tour struct {
	ID                  uint               `gorm:"primarykey" json:"id"`
	ProviderID          uint               `json:"provider_id,omitempty"`
	Title               string             `json:"title,omitempty"`
	Slug                string             `gorm:"index" json:"slug,omitempty"`
	Description         string             `json:"description,omitempty"`
	Category            types.TourCategory `gorm:"index" json:"category,omitempty"`
	Destination         string             `gorm:"index" json:"destination,omitempty"`
	DurationDays        uint               `json:"duration_days,omitempty"`
	PricePerPerson      float64            `json:"price_per_person,omitempty"`
	StartDate           time.Time          `json:"start_date,omitempty"`
	EndDate             time.Time          `json:"end_date,omitempty"`
	MinParticipants     uint               `gorm:"default:1" json:"min_participants,omitempty"`
	MaxParticipants     *uint              `json:"max_participants,omitempty"`
	CurrentParticipants uint               `json:"current_participants"`
	Includes            types.JSONBArray   `gorm:"type:jsonb" json:"includes,omitempty"`
	Excludes            types.JSONBArray   `gorm:"type:jsonb" json:"excludes,omitempty"`
	Itinerary           types.JSONB        `gorm:"type:jsonb" json:"itinerary,omitempty"`
	IsGroupTour         bool               `json:"is_group_tour,omitempty"`
	IsActive            bool               `gorm:"default:true" json:"is_active"`

	Provider *User      `gorm:"foreignKey:provider_id" json:"provider,omitempty"`
	Bookings []*Booking `gorm:"foreignKey:tour_id" json:"bookings,omitempty"`
	Reviews  []*Review  `gorm:"foreignKey:tour_id" json:"reviews,omitempty"`

	types.Timestamps
}

// SeatsLeft returns the remaining capacity, or nil for unlimited tours.
func (t *Tour) SeatsLeft() *uint {
	if t.MaxParticipants == nil {
		return nil
	}
	if *t.MaxParticipants <= t.CurrentParticipants {
		zero := uint(0)
		return &zero
	}
	left := *t.MaxParticipants - t.CurrentParticipants
	return &left
}
