package models

import (
	"safaribuddy/src/types"
	"time"

	"github.com/google/uuid"
)

// Payment is a single attempt to settle a booking. Attempts are never
// reused: a failed attempt stays failed and a retry creates a new row.
type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID          uint                `json:"booking_id"`
	Amount             float64             `json:"amount"`
	Currency           string              `gorm:"default:'KES'" json:"currency"`
	Method             types.PaymentMethod `gorm:"default:'mpesa'" json:"method"`
	Status             types.PaymentStatus `gorm:"default:'pending'" json:"status"`
	PhoneNumber        string              `json:"phone_number,omitempty"`
	MerchantRequestID  string              `json:"merchant_request_id,omitempty"`
	CheckoutRequestID  string              `gorm:"uniqueIndex" json:"checkout_request_id,omitempty"`
	MpesaReceiptNumber string              `json:"mpesa_receipt_number,omitempty"`
	FailureReason      string              `json:"failure_reason,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	Details            types.JSONB         `gorm:"type:jsonb" json:"-"`

	types.Timestamps

	Booking Booking `gorm:"foreignKey:booking_id" json:"-"`
}

// Terminal reports whether the attempt has reached a final status.
func (p *Payment) Terminal() bool {
	return p.Status == types.PAYMENT_COMPLETED ||
		p.Status == types.PAYMENT_FAILED ||
		p.Status == types.PAYMENT_REFUNDED
}
