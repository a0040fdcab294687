package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// paymentTimeoutWindow is how long an STK push stays pending before the
// timeout job marks it failed.
const paymentTimeoutWindow = 2 * time.Minute

// initiateMpesaPayment opens a fresh payment attempt for a booking and sends
// an STK push to the customer's phone. Every retry creates a new attempt row,
// earlier attempts are left untouched.
func initiateMpesaPayment(ctx context.Context, booking *models.Booking, phone string) (*models.Payment, error) {
	if booking.PaymentState == types.BOOKING_PAID {
		return nil, errors.New("booking is already paid")
	}
	if booking.Status == types.BOOKING_CANCELLED {
		return nil, errors.New("booking is cancelled")
	}
	normalized, err := lib.NormalizePhoneNumber(phone)
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		BookingID:   booking.ID,
		Amount:      booking.TotalAmount,
		Currency:    "KES",
		Method:      types.PAYMENT_MPESA,
		Status:      types.PAYMENT_PENDING,
		PhoneNumber: normalized,
	}
	db := db.GetDb()
	if err := db.Create(&payment).Error; err != nil {
		log.Printf("Error creating payment attempt for booking [%d]: %s\n", booking.ID, err.Error())
		return nil, errors.New("could not open a payment attempt")
	}

	mp := lib.GetMpesaClient()
	res, err := mp.STKPush(ctx, &lib.STKPushInput{
		Amount:           booking.TotalAmount,
		PhoneNumber:      normalized,
		AccountReference: booking.Reference,
		Description:      fmt.Sprintf("Safari Buddy booking %s", booking.Reference),
	})
	if err != nil {
		log.Printf("[mpesa] STK push failed for booking [%d]: %s\n", booking.ID, err.Error())
		db.
			Model(&models.Payment{}).
			Where(&models.Payment{ID: payment.ID}).
			Updates(map[string]any{
				"status":         types.PAYMENT_FAILED,
				"failure_reason": err.Error(),
			})
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Payment{}).
			Where(&models.Payment{ID: payment.ID}).
			Updates(map[string]any{
				"merchant_request_id": res.MerchantRequestID,
				"checkout_request_id": res.CheckoutRequestID,
			}).Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: booking.ID}).
			Update("payment_status", types.BOOKING_PROCESSING).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error recording STK push for payment [%s]: %s\n", payment.ID, err.Error())
		return nil, err
	}
	payment.MerchantRequestID = res.MerchantRequestID
	payment.CheckoutRequestID = res.CheckoutRequestID

	utils.SchedulePaymentTimeout(payment.ID, booking.ID, time.Now().Add(paymentTimeoutWindow))
	return &payment, nil
}

// initiateCardPayment opens a card attempt backed by a Stripe payment intent.
// The intent id doubles as the checkout request id so webhook settlement is
// shared with the mobile money path.
func initiateCardPayment(booking *models.Booking) (*models.Payment, string, error) {
	if booking.PaymentState == types.BOOKING_PAID {
		return nil, "", errors.New("booking is already paid")
	}
	if booking.Status == types.BOOKING_CANCELLED {
		return nil, "", errors.New("booking is cancelled")
	}
	pi, err := lib.CreateCardPaymentIntent(booking.TotalAmount, "kes", booking.Reference)
	if err != nil {
		log.Printf("[stripe] Error creating payment intent: %s\n", err.Error())
		return nil, "", err
	}
	payment := models.Payment{
		BookingID:         booking.ID,
		Amount:            booking.TotalAmount,
		Currency:          "KES",
		Method:            types.PAYMENT_CARD,
		Status:            types.PAYMENT_PENDING,
		CheckoutRequestID: pi.ID,
	}
	if err := db.GetDb().Create(&payment).Error; err != nil {
		return nil, "", err
	}
	return &payment, pi.ClientSecret, nil
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/initiate", func(ctx *gin.Context) {
			var body types.InitiatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: body.BookingID, UserID: userId}).
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			switch types.PaymentMethod(body.Method) {
			case "", types.PAYMENT_MPESA:
				payment, err := initiateMpesaPayment(ctx, &booking, body.PhoneNumber)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusCreated, gin.H{
					"payment_id":          payment.ID,
					"checkout_request_id": payment.CheckoutRequestID,
					"customer_message":    "Enter your M-PESA PIN on your phone to complete payment",
				})
			case types.PAYMENT_CARD:
				payment, secret, err := initiateCardPayment(&booking)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusCreated, gin.H{
					"payment_id":    payment.ID,
					"client_secret": secret,
				})
			default:
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "unsupported payment method"})
			}
		}).
		POST("/payments/query", func(ctx *gin.Context) {
			var body types.QueryPaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var payment models.Payment
			if err := db.
				Model(&models.Payment{}).
				Where(&models.Payment{CheckoutRequestID: body.CheckoutRequestID}).
				Preload("Booking").
				First(&payment).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
				return
			}
			if payment.Booking.UserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			if payment.Terminal() {
				ctx.JSON(http.StatusOK, gin.H{"status": payment.Status, "failure_reason": payment.FailureReason})
				return
			}
			res, err := lib.GetMpesaClient().STKQuery(ctx, body.CheckoutRequestID)
			if err != nil {
				log.Printf("[mpesa] STK query failed for payment [%s]: %s\n", payment.ID, err.Error())
				ctx.JSON(http.StatusOK, gin.H{"status": payment.Status})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"status":      payment.Status,
				"result_code": res.ResultCode,
				"result_desc": res.ResultDesc,
			})
		}).
		POST("/payments/checkout", func(ctx *gin.Context) {
			var body types.CardCheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: body.BookingID, UserID: userId}).
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			payment, secret, err := initiateCardPayment(&booking)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"payment_id":    payment.ID,
				"client_secret": secret,
			})
		}).
		GET("/payments/booking/:id", func(ctx *gin.Context) {
			bookingId, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: uint(bookingId), UserID: userId}).
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			payments := []models.Payment{}
			if err := db.
				Model(&models.Payment{}).
				Where(&models.Payment{BookingID: booking.ID}).
				Order("created_at desc").
				Find(&payments).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payments, "count": len(payments)})
		}).
		GET("/payments/:id", func(ctx *gin.Context) {
			id, err := uuid.Parse(ctx.Param("id"))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var payment models.Payment
			if err := db.
				Model(&models.Payment{}).
				Where(&models.Payment{ID: id}).
				Preload("Booking").
				First(&payment).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
				return
			}
			if payment.Booking.UserID != userId {
				ctx.Status(http.StatusForbidden)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payment})
		})
	return g
}
