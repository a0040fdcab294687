package utils

import (
	"errors"
	"fmt"
	"log"
	"os"
	"safaribuddy/src/checkout"
	"safaribuddy/src/config"
	"safaribuddy/src/db"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithSuffix appends the environment name to queue and topic names so that
// deployments sharing an account do not consume each other's messages.
func WithSuffix(name string) string {
	env := config.API_ENV
	if env == "" {
		return name
	}
	return fmt.Sprintf("%s_%s", name, env)
}

func IsProd() bool {
	return config.API_ENV == string(types.Production)
}

func GenerateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := types.Claims{
		Username: user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

// NewBookingReference generates a short human readable reference like SB-3F2A9C1D.
func NewBookingReference() string {
	id := uuid.New()
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("SB-%s", hex[:8])
}

func CreateTour(params *types.CreateTourRequestBody, providerId uint) (uint, error) {
	startDate, err := time.Parse(config.TIME_PARSE_FORMAT, params.StartDate)
	if err != nil {
		log.Printf("Error parsing start_date: %s\n", err.Error())
		return 0, err
	}
	endDate, err := time.Parse(config.TIME_PARSE_FORMAT, params.EndDate)
	if err != nil {
		log.Printf("Error parsing end_date: %s\n", err.Error())
		return 0, err
	}
	includes := make(types.JSONBArray, 0, len(params.Includes))
	for _, v := range params.Includes {
		includes = append(includes, v)
	}
	excludes := make(types.JSONBArray, 0, len(params.Excludes))
	for _, v := range params.Excludes {
		excludes = append(excludes, v)
	}
	tour := models.Tour{
		Title:           params.Title,
		Slug:            slug.Make(params.Title),
		Description:     params.Description,
		Category:        params.Category,
		Destination:     params.Destination,
		DurationDays:    params.DurationDays,
		PricePerPerson:  params.PricePerPerson,
		StartDate:       startDate,
		EndDate:         endDate,
		MinParticipants: params.MinParticipants,
		MaxParticipants: params.MaxParticipants,
		Includes:        includes,
		Excludes:        excludes,
		Itinerary:       params.Itinerary,
		IsGroupTour:     params.IsGroupTour,
		IsActive:        true,
		ProviderID:      providerId,
	}

	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var provider models.User
		if err := tx.Where(&models.User{ID: providerId}).First(&provider).Error; err != nil {
			return err
		}
		if !provider.IsProvider() {
			return errors.New("not enough permissions to perform this action")
		}
		if err := tx.Create(&tour).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tour.ID, nil
}

// CreateBooking reserves seats on a tour inside a single transaction. The tour
// row is locked so concurrent bookings cannot oversell the remaining seats.
func CreateBooking(params *types.CreateBookingRequestBody, userId uint) (*models.Booking, error) {
	var booking models.Booking
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var tour models.Tour
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: clause.CurrentTable},
			}).
			Where(&models.Tour{ID: params.TourID}).
			First(&tour).
			Error; err != nil {
			return err
		}
		if !tour.IsActive {
			return errors.New("tour is not open for booking")
		}
		if tour.MaxParticipants != nil {
			left := *tour.MaxParticipants - tour.CurrentParticipants
			if params.NumberOfPeople > left {
				return fmt.Errorf("tour has only %d seats left", left)
			}
		}
		total := checkout.ComputeTotal(tour.PricePerPerson, params.NumberOfPeople)
		booking = models.Booking{
			UserID:          userId,
			TourID:          tour.ID,
			Reference:       NewBookingReference(),
			NumberOfPeople:  params.NumberOfPeople,
			TotalAmount:     total,
			Status:          types.BOOKING_PENDING,
			PaymentState:    types.BOOKING_UNPAID,
			SpecialRequests: params.SpecialRequests,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Tour{}).
			Where(&models.Tour{ID: tour.ID}).
			Update("current_participants", tour.CurrentParticipants+params.NumberOfPeople).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CreateBooking failed: %s\n", err.Error())
		return nil, err
	}
	return &booking, nil
}

func CancelBooking(id uint, userId uint) error {
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Where(&models.Booking{ID: id, UserID: userId}).
			First(&booking).
			Error; err != nil {
			return err
		}
		if booking.Status == types.BOOKING_COMPLETED {
			return errors.New("cancelling a completed booking is not allowed")
		}
		if booking.Status == types.BOOKING_CANCELLED {
			return errors.New("booking is already cancelled")
		}
		var tour models.Tour
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: clause.CurrentTable},
			}).
			Where(&models.Tour{ID: booking.TourID}).
			First(&tour).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: booking.ID}).
			Update("status", types.BOOKING_CANCELLED).
			Error; err != nil {
			return err
		}
		freed := tour.CurrentParticipants - booking.NumberOfPeople
		if booking.NumberOfPeople > tour.CurrentParticipants {
			freed = 0
		}
		if err := tx.
			Model(&models.Tour{}).
			Where(&models.Tour{ID: tour.ID}).
			Update("current_participants", freed).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CancelBooking failed: %s\n", err.Error())
		return err
	}
	return nil
}

// MarkBookingPaid flips a booking to paid and confirms it once a payment
// attempt settles. The booking row is locked while both columns change.
func MarkBookingPaid(bookingId uint) error {
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: clause.CurrentTable},
			}).
			Where(&models.Booking{ID: bookingId}).
			First(&booking).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId}).
			Updates(map[string]any{
				"payment_status": types.BOOKING_PAID,
				"status":         types.BOOKING_CONFIRMED,
			}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error marking booking %d as paid: %s\n", bookingId, err.Error())
		return err
	}
	return nil
}

// MarkBookingPaymentFailed records a failed attempt. The booking itself stays
// pending so the customer can retry with a fresh attempt.
func MarkBookingPaymentFailed(bookingId uint) error {
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId}).
			Update("payment_status", types.BOOKING_PAYMENT_FAILED).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error marking booking %d payment as failed: %s\n", bookingId, err.Error())
		return err
	}
	return nil
}

// SchedulePaymentTimeout enqueues a job that expires a pending payment attempt
// if no confirmation arrives before runsAt.
func SchedulePaymentTimeout(paymentId uuid.UUID, bookingId uint, runsAt time.Time) {
	runDate := time.Date(
		runsAt.UTC().Year(),
		runsAt.UTC().Month(),
		runsAt.UTC().Day(),
		runsAt.UTC().Hour(),
		runsAt.UTC().Minute(),
		runsAt.UTC().Second(),
		0,
		runsAt.UTC().Location(),
	)
	log.Printf("[PaymentTimeout] job scheduled at: %s\n", runDate)
	jobTaskID := uuid.New()
	payloadId := jobTaskID.String()
	topic := WithSuffix("PaymentTimeouts")
	jobTask := models.JobTask{
		Name:      fmt.Sprintf("Payment_%s_Timeout", paymentId.String()),
		JobType:   "OneTimeJobStartDateTime",
		RunsAt:    runDate,
		PayloadID: payloadId,
		Payload: map[string]any{
			"payloadId":        payloadId,
			"id":               paymentId.String(),
			"bookingId":        int64(bookingId),
			"producerClientId": "PaymentTimeoutsProducer",
			"topic":            topic,
			"table":            "payments",
		},
		Source:     "Payments",
		SourceType: "table",
		Topic:      topic,
	}
	id, err := jobTask.CreateAndEnqueueJobTask(jobTask)
	if err != nil {
		log.Printf("Error creating job for Payment: id=%s error=%s\n", paymentId.String(), err.Error())
		return
	}
	log.Printf("Created job for Payment[%s] with ID %s\n", paymentId.String(), id)
}
