package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"safaribuddy/src/lib/mailer"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gookit/goutil/dump"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// webhookRoutes receives gateway notifications. These endpoints are
// unauthenticated, callers are verified by the identifiers they carry.
func webhookRoutes(g *gin.Engine) {
	wh := g.Group(apiPrefix)
	wh.POST("/webhook/mpesa", func(ctx *gin.Context) {
		raw, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		cb, err := lib.ParseSTKCallback(string(raw))
		if err != nil {
			log.Printf("[webhook] Error parsing mpesa callback: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		if os.Getenv("API_ENV") == "local" {
			dump.P(cb)
		}
		if err := settleMpesaPayment(cb); err != nil {
			log.Printf("[webhook] Error settling payment [%s]: %s\n", cb.CheckoutRequestID, err.Error())
		}
		// Daraja retries on anything but an acknowledgement.
		ctx.JSON(http.StatusOK, lib.MpesaCallbackAck())
	})
	wh.POST("/webhook/stripe", func(ctx *gin.Context) {
		raw, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		event := gjson.ParseBytes(raw)
		eventType := event.Get("type").String()
		intentId := event.Get("data.object.id").String()
		switch eventType {
		case "payment_intent.succeeded":
			if err := settleCardPayment(intentId, true, ""); err != nil {
				log.Printf("[webhook] Error settling card payment [%s]: %s\n", intentId, err.Error())
			}
		case "payment_intent.payment_failed":
			reason := event.Get("data.object.last_payment_error.message").String()
			if err := settleCardPayment(intentId, false, reason); err != nil {
				log.Printf("[webhook] Error settling card payment [%s]: %s\n", intentId, err.Error())
			}
		default:
			log.Printf("[webhook] Ignoring stripe event: %s\n", eventType)
		}
		ctx.Status(http.StatusOK)
	})
}

// settleMpesaPayment applies an STK callback to the matching attempt. Attempts
// that already reached a final status are left untouched so late or duplicate
// callbacks cannot flip them.
func settleMpesaPayment(cb *lib.STKCallback) error {
	db := db.GetDb()
	var payment models.Payment
	if err := db.
		Model(&models.Payment{}).
		Where(&models.Payment{CheckoutRequestID: cb.CheckoutRequestID}).
		Preload("Booking").
		First(&payment).
		Error; err != nil {
		return fmt.Errorf("no payment attempt for CheckoutRequestID %s", cb.CheckoutRequestID)
	}
	if payment.Terminal() {
		log.Printf("[webhook] Payment [%s] already settled as %s, skipping\n", payment.ID, payment.Status)
		return nil
	}

	settled := false
	err := db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"details": types.JSONB{
				"ResultCode":      cb.ResultCode,
				"ResultDesc":      cb.ResultDesc,
				"TransactionDate": cb.TransactionDate,
			},
		}
		if cb.Successful() {
			now := time.Now()
			updates["status"] = types.PAYMENT_COMPLETED
			updates["mpesa_receipt_number"] = cb.MpesaReceiptNumber
			updates["completed_at"] = &now
		} else {
			updates["status"] = types.PAYMENT_FAILED
			updates["failure_reason"] = cb.ResultDesc
		}
		// Only a pending row is written, whichever writer settles the
		// attempt first sticks.
		res := tx.
			Model(&models.Payment{}).
			Where(&models.Payment{ID: payment.ID}).
			Where("status = ?", types.PAYMENT_PENDING).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		settled = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return err
	}
	if !settled {
		log.Printf("[webhook] Payment [%s] settled concurrently, skipping\n", payment.ID)
		return nil
	}

	if cb.Successful() {
		if err := utils.MarkBookingPaid(payment.BookingID); err != nil {
			return err
		}
		sendBookingConfirmation(&payment)
	} else {
		if err := utils.MarkBookingPaymentFailed(payment.BookingID); err != nil {
			return err
		}
	}

	update := types.JSONB{
		"payment_id": payment.ID.String(),
		"booking_id": payment.BookingID,
		"successful": cb.Successful(),
		"reason":     cb.ResultDesc,
	}
	if err := lib.KafkaProduceMessage("payments", utils.WithSuffix("PaymentUpdates"), update); err != nil {
		log.Printf("[webhook] Error producing payment update: %s\n", err.Error())
	}
	return nil
}

func settleCardPayment(intentId string, successful bool, reason string) error {
	db := db.GetDb()
	var payment models.Payment
	if err := db.
		Model(&models.Payment{}).
		Where(&models.Payment{CheckoutRequestID: intentId}).
		Preload("Booking").
		First(&payment).
		Error; err != nil {
		return fmt.Errorf("no payment attempt for intent %s", intentId)
	}
	if payment.Terminal() {
		return nil
	}
	updates := map[string]any{}
	if successful {
		now := time.Now()
		updates["status"] = types.PAYMENT_COMPLETED
		updates["completed_at"] = &now
	} else {
		updates["status"] = types.PAYMENT_FAILED
		updates["failure_reason"] = reason
	}
	res := db.
		Model(&models.Payment{}).
		Where(&models.Payment{ID: payment.ID}).
		Where("status = ?", types.PAYMENT_PENDING).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if successful {
		if err := utils.MarkBookingPaid(payment.BookingID); err != nil {
			return err
		}
		sendBookingConfirmation(&payment)
		return nil
	}
	return utils.MarkBookingPaymentFailed(payment.BookingID)
}

func sendBookingConfirmation(payment *models.Payment) {
	db := db.GetDb()
	var booking models.Booking
	if err := db.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: payment.BookingID}).
		Preload("User").
		Preload("Tour").
		First(&booking).
		Error; err != nil {
		log.Printf("[webhook] Error loading booking [%d] for confirmation email: %s\n", payment.BookingID, err.Error())
		return
	}
	if booking.User == nil || booking.Tour == nil {
		return
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour payment of KES %.2f for %s was received. Your booking reference is %s.\n\nKaribu!\nThe Safari Buddy Team",
		booking.User.FullName,
		payment.Amount,
		booking.Tour.Title,
		booking.Reference,
	)
	err := mailer.NewMailerMessage(&lib.SendMailInput{
		From:     "bookings@safaribuddy.app",
		FromName: "Safari Buddy",
		To:       []string{booking.User.Email},
		Subject:  fmt.Sprintf("Booking %s confirmed", booking.Reference),
		Body:     body,
	})
	if err != nil {
		log.Printf("[webhook] Error queueing confirmation email for booking [%d]: %s\n", booking.ID, err.Error())
	}
}
