package models

import "safaribuddy/src/types"

type Booking struct {
	ID              uint                      `gorm:"primarykey" json:"id"`
	UserID          uint                      `json:"user_id,omitempty"`
	TourID          uint                      `json:"tour_id,omitempty"`
	Reference       string                    `gorm:"uniqueIndex" json:"booking_reference,omitempty"`
	NumberOfPeople  uint                      `json:"number_of_people,omitempty"`
	TotalAmount     float64                   `json:"total_amount,omitempty"`
	Status          types.BookingStatus       `gorm:"default:'pending'" json:"booking_status,omitempty"`
	PaymentState    types.BookingPaymentState `gorm:"column:payment_status;default:'unpaid'" json:"payment_status,omitempty"`
	SpecialRequests string                    `json:"special_requests,omitempty"`
	Metadata        *types.Metadata           `gorm:"type:jsonb" json:"-"`

	Tour     *Tour      `gorm:"foreignKey:tour_id" json:"tour,omitempty"`
	User     *User      `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Payments []*Payment `gorm:"foreignKey:booking_id" json:"payments,omitempty"`

	types.Timestamps
}
