package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"safaribuddy/src/checkout"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// checkoutSessionMaxAge is how long an unfinished session is kept before the
// sweeper discards it.
const checkoutSessionMaxAge = 30 * time.Minute

type dbTourDirectory struct{}

func (dbTourDirectory) GetTour(ctx context.Context, id uint) (*checkout.Tour, error) {
	db := db.GetDb()
	var tour models.Tour
	if err := db.
		Model(&models.Tour{}).
		Where(&models.Tour{ID: id}).
		First(&tour).
		Error; err != nil {
		return nil, &checkout.NotFoundError{TourID: id}
	}
	// The session validates party size against the seats still open, not the
	// full capacity. A sold out tour maps to a zero cap and is rejected at
	// NewSession.
	return &checkout.Tour{
		ID:              tour.ID,
		Title:           tour.Title,
		PricePerPerson:  tour.PricePerPerson,
		MaxParticipants: tour.SeatsLeft(),
		Active:          tour.IsActive,
	}, nil
}

type dbBookingSubmitter struct {
	userID uint
}

func (s dbBookingSubmitter) SubmitBooking(ctx context.Context, tour *checkout.Tour, draft *checkout.Draft, partySize uint, total float64) (*checkout.Booking, error) {
	booking, err := utils.CreateBooking(&types.CreateBookingRequestBody{
		TourID:          tour.ID,
		NumberOfPeople:  partySize,
		SpecialRequests: draft.SpecialRequests,
	}, s.userID)
	if err != nil {
		return nil, err
	}
	return &checkout.Booking{
		ID:        booking.ID,
		Reference: booking.Reference,
		Total:     booking.TotalAmount,
	}, nil
}

type dbPaymentInitiator struct{}

func (dbPaymentInitiator) InitiatePayment(ctx context.Context, booking *checkout.Booking, phone string) (*checkout.Payment, error) {
	db := db.GetDb()
	var row models.Booking
	if err := db.
		Where(&models.Booking{ID: booking.ID}).
		First(&row).
		Error; err != nil {
		return nil, err
	}
	payment, err := initiateMpesaPayment(ctx, &row, phone)
	if err != nil {
		return nil, err
	}
	return &checkout.Payment{
		ID:                payment.ID.String(),
		CheckoutRequestID: payment.CheckoutRequestID,
	}, nil
}

func (dbPaymentInitiator) PaymentResult(ctx context.Context, payment *checkout.Payment) (checkout.PaymentOutcome, string, error) {
	id, err := uuid.Parse(payment.ID)
	if err != nil {
		return checkout.OutcomePending, "", err
	}
	db := db.GetDb()
	var row models.Payment
	if err := db.
		Model(&models.Payment{}).
		Where(&models.Payment{ID: id}).
		First(&row).
		Error; err != nil {
		return checkout.OutcomePending, "", err
	}
	switch row.Status {
	case types.PAYMENT_COMPLETED:
		return checkout.OutcomeSucceeded, "", nil
	case types.PAYMENT_FAILED, types.PAYMENT_REFUNDED:
		reason := row.FailureReason
		if reason == "" {
			reason = "payment failed"
		}
		return checkout.OutcomeFailed, reason, nil
	default:
		return checkout.OutcomePending, "", nil
	}
}

type checkoutEntry struct {
	session   *checkout.Session
	userID    uint
	createdAt time.Time
}

type checkoutRegistry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*checkoutEntry
}

var checkoutSessions = &checkoutRegistry{entries: map[uuid.UUID]*checkoutEntry{}}

func (r *checkoutRegistry) add(sess *checkout.Session, userID uint) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &checkoutEntry{session: sess, userID: userID, createdAt: time.Now()}
	return id
}

func (r *checkoutRegistry) get(id uuid.UUID, userID uint) *checkout.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok || entry.userID != userID {
		return nil
	}
	return entry.session
}

// sweep drops unfinished sessions older than maxAge. Succeeded sessions are
// dropped too, their bookings live in the database.
func (r *checkoutRegistry) sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.entries {
		if entry.createdAt.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}

func sweepCheckoutSessions() {
	checkoutSessions.sweep(checkoutSessionMaxAge)
}

func initCheckoutSweeper() {
	if _, err := lib.CreateCronJob(sweepCheckoutSessions, 10*time.Minute); err != nil {
		log.Printf("Error scheduling checkout sweeper: %s\n", err.Error())
	}
}

func respondCheckoutError(ctx *gin.Context, err error) {
	var verr *checkout.ValidationError
	var nfe *checkout.NotFoundError
	var ite *checkout.InvalidTransitionError
	var serr *checkout.SubmissionError
	var perr *checkout.PaymentError
	switch {
	case errors.As(err, &nfe):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, checkout.ErrTourUnavailable),
		errors.Is(err, checkout.ErrCheckoutComplete),
		errors.Is(err, checkout.ErrSubmissionInFlight),
		errors.Is(err, checkout.ErrPartySizeLocked):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.As(err, &ite):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &serr):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error(), "reason": perr.Reason})
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func checkoutSessionFromRequest(ctx *gin.Context) *checkout.Session {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil
	}
	sess := checkoutSessions.get(id, ctx.GetUint("id"))
	if sess == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "checkout session not found"})
		return nil
	}
	return sess
}

func checkoutSessionResponse(id string, sess *checkout.Session) gin.H {
	res := gin.H{
		"id":         id,
		"state":      sess.State(),
		"party_size": sess.PartySize(),
		"total":      sess.Total(),
	}
	if booking := sess.Booking(); booking != nil {
		res["booking"] = gin.H{
			"id":                booking.ID,
			"booking_reference": booking.Reference,
			"total_amount":      booking.Total,
		}
	}
	if lastErr := sess.LastError(); lastErr != nil {
		res["last_error"] = lastErr.Error()
	}
	return res
}

func checkoutHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/checkout/sessions", func(ctx *gin.Context) {
			var body types.CreateCheckoutSessionRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			sess, err := checkout.NewSession(
				ctx,
				dbTourDirectory{},
				dbBookingSubmitter{userID: userId},
				dbPaymentInitiator{},
				body.TourID,
				checkout.Config{},
			)
			if err != nil {
				respondCheckoutError(ctx, err)
				return
			}
			id := checkoutSessions.add(sess, userId)
			tour := sess.Tour()
			res := checkoutSessionResponse(id.String(), sess)
			res["tour"] = gin.H{
				"id":               tour.ID,
				"title":            tour.Title,
				"price_per_person": tour.PricePerPerson,
			}
			ctx.JSON(http.StatusCreated, res)
		}).
		GET("/checkout/sessions/:id", func(ctx *gin.Context) {
			sess := checkoutSessionFromRequest(ctx)
			if sess == nil {
				return
			}
			ctx.JSON(http.StatusOK, checkoutSessionResponse(ctx.Param("id"), sess))
		}).
		PUT("/checkout/sessions/:id/party-size", func(ctx *gin.Context) {
			sess := checkoutSessionFromRequest(ctx)
			if sess == nil {
				return
			}
			var body types.CheckoutPartySizeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := sess.ConfirmPartySize(body.PartySize); err != nil {
				respondCheckoutError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, checkoutSessionResponse(ctx.Param("id"), sess))
		}).
		PUT("/checkout/sessions/:id/details", func(ctx *gin.Context) {
			sess := checkoutSessionFromRequest(ctx)
			if sess == nil {
				return
			}
			var body types.CheckoutDetailsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			err := sess.EnterDetails(checkout.Draft{
				FullName:        body.FullName,
				Email:           body.Email,
				Phone:           body.Phone,
				SpecialRequests: body.SpecialRequests,
			})
			if err != nil {
				respondCheckoutError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, checkoutSessionResponse(ctx.Param("id"), sess))
		}).
		POST("/checkout/sessions/:id/submit", func(ctx *gin.Context) {
			sess := checkoutSessionFromRequest(ctx)
			if sess == nil {
				return
			}
			if err := sess.Submit(ctx); err != nil {
				respondCheckoutError(ctx, err)
				return
			}
			// Confirmation runs in the background, the client polls the
			// session until it settles.
			go func() {
				if err := sess.AwaitConfirmation(context.Background()); err != nil {
					log.Printf("[checkout] Confirmation ended with error: %s\n", err.Error())
				}
			}()
			ctx.JSON(http.StatusAccepted, checkoutSessionResponse(ctx.Param("id"), sess))
		})
	return g
}
