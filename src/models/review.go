package models

import "safaribuddy/src/types"

type Review struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	TourID    uint   `gorm:"index" json:"tour_id"`
	UserID    uint   `json:"user_id"`
	BookingID uint   `gorm:"uniqueIndex" json:"booking_id"`
	Rating    uint   `json:"rating"`
	Comment   string `json:"comment,omitempty"`

	Tour *Tour `gorm:"foreignKey:tour_id" json:"-"`
	User *User `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}
