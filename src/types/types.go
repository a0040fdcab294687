package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type UserRole string

const (
	ROLE_TOURIST UserRole = "tourist"
	ROLE_GUIDE   UserRole = "guide"
	ROLE_COMPANY UserRole = "company"
	ROLE_ADMIN   UserRole = "admin"
)

type UserStatus string

const (
	USER_ACTIVE    UserStatus = "active"
	USER_PENDING   UserStatus = "pending"
	USER_SUSPENDED UserStatus = "suspended"
)

type TourCategory string

const (
	TOUR_WILDLIFE  TourCategory = "wildlife"
	TOUR_BEACH     TourCategory = "beach"
	TOUR_MOUNTAIN  TourCategory = "mountain"
	TOUR_CULTURAL  TourCategory = "cultural"
	TOUR_ADVENTURE TourCategory = "adventure"
	TOUR_WELLNESS  TourCategory = "wellness"
	TOUR_CITY      TourCategory = "city"
	TOUR_ROAD_TRIP TourCategory = "road_trip"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_CANCELLED BookingStatus = "cancelled"
	BOOKING_COMPLETED BookingStatus = "completed"
)

// BookingPaymentState tracks money separately from the booking lifecycle.
// A failed payment attempt never moves a booking to BOOKING_PAID.
type BookingPaymentState string

const (
	BOOKING_UNPAID         BookingPaymentState = "unpaid"
	BOOKING_PROCESSING     BookingPaymentState = "processing"
	BOOKING_PAID           BookingPaymentState = "paid"
	BOOKING_PAYMENT_FAILED BookingPaymentState = "failed"
)

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
	PAYMENT_REFUNDED  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PAYMENT_MPESA PaymentMethod = "mpesa"
	PAYMENT_CARD  PaymentMethod = "card"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"required,kephone"`
	Role     string `json:"role,omitempty"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateTourRequestBody struct {
	Title           string       `json:"title" binding:"required"`
	Description     string       `json:"description,omitempty"`
	Category        TourCategory `json:"category" binding:"required"`
	Destination     string       `json:"destination" binding:"required"`
	DurationDays    uint         `json:"duration_days" binding:"required,min=1"`
	PricePerPerson  float64      `json:"price_per_person" binding:"required,gt=0"`
	StartDate       string       `json:"start_date" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndDate         string       `json:"end_date" binding:"required,bookabledate,gtdate=StartDate" time_format:"2006-01-02 15:04:05 -07:00"`
	MinParticipants uint         `json:"min_participants,omitempty"`
	MaxParticipants *uint        `json:"max_participants,omitempty"`
	Includes        []string     `json:"includes,omitempty"`
	Excludes        []string     `json:"excludes,omitempty"`
	Itinerary       JSONB        `json:"itinerary,omitempty"`
	IsGroupTour     bool         `json:"is_group_tour,omitempty"`
}

type UpdateTourRequestBody struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	PricePerPerson *float64 `json:"price_per_person,omitempty" binding:"omitempty,gt=0"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

type TourQueryFilters struct {
	Category    string  `form:"category,omitempty"`
	Destination string  `form:"destination,omitempty"`
	MinPrice    float64 `form:"min_price,omitempty"`
	MaxPrice    float64 `form:"max_price,omitempty"`
	Skip        int     `form:"skip,omitempty"`
	Limit       int     `form:"limit,omitempty"`
}

type CreateBookingRequestBody struct {
	TourID          uint   `json:"tour_id" binding:"required"`
	NumberOfPeople  uint   `json:"number_of_people" binding:"required,min=1"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

type InitiatePaymentRequestBody struct {
	BookingID   uint          `json:"booking_id" binding:"required"`
	PhoneNumber string        `json:"phone_number" binding:"required,kephone"`
	Method      PaymentMethod `json:"method,omitempty"`
}

type QueryPaymentRequestBody struct {
	CheckoutRequestID string `json:"checkout_request_id" binding:"required"`
}

type CardCheckoutRequestBody struct {
	BookingID uint `json:"booking_id" binding:"required"`
}

type CreateReviewRequestBody struct {
	BookingID uint   `json:"booking_id" binding:"required"`
	Rating    uint8  `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty"`
}

type CreateCheckoutSessionRequestBody struct {
	TourID uint `json:"tour_id" binding:"required"`
}

type CheckoutPartySizeRequestBody struct {
	PartySize uint `json:"party_size" binding:"required,min=1"`
}

type CheckoutDetailsRequestBody struct {
	FullName        string `json:"full_name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"required"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

type APIResponseTour struct {
	ID              uint         `json:"id"`
	Title           string       `json:"title,omitempty"`
	Slug            string       `json:"slug,omitempty"`
	Category        TourCategory `json:"category,omitempty"`
	Destination     string       `json:"destination,omitempty"`
	DurationDays    uint         `json:"duration_days,omitempty"`
	PricePerPerson  float64      `json:"price_per_person,omitempty"`
	MaxParticipants *uint        `json:"max_participants,omitempty"`
	SeatsLeft       *uint        `json:"seats_left,omitempty"`
	Rating          float64      `json:"rating,omitempty"`
	ReviewCount     int64        `json:"review_count,omitempty"`
	IsActive        bool         `json:"is_active"`

	Timestamps
}

type APIResponseBooking struct {
	ID              uint                `json:"id"`
	TourID          uint                `json:"tour_id,omitempty"`
	Reference       string              `json:"booking_reference,omitempty"`
	NumberOfPeople  uint                `json:"number_of_people,omitempty"`
	TotalAmount     float64             `json:"total_amount,omitempty"`
	Status          BookingStatus       `json:"booking_status,omitempty"`
	PaymentState    BookingPaymentState `json:"payment_status,omitempty"`
	SpecialRequests string              `json:"special_requests,omitempty"`

	Tour *APIResponseTour `json:"tour,omitempty"`

	Timestamps
}

type ProviderDashboard struct {
	Tours       int64   `json:"tours"`
	ActiveTours int64   `json:"active_tours"`
	Bookings    int64   `json:"bookings"`
	Revenue     float64 `json:"revenue"`
	AvgRating   float64 `json:"avg_rating"`
}

type TouristDashboard struct {
	Bookings  int64 `json:"bookings"`
	Upcoming  int64 `json:"upcoming"`
	Completed int64 `json:"completed"`
	Reviews   int64 `json:"reviews"`
}

type Handler func(payload string)
