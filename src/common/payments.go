package common

import (
	"encoding/json"
	"log"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	awslib "safaribuddy/src/lib/aws"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// expirePaymentAttempt marks a still pending attempt as timed out and flags
// its booking. Attempts that already settled are left alone, a late callback
// always wins over the timeout job.
func expirePaymentAttempt(paymentId uuid.UUID, bookingId uint) {
	db := db.GetDb()
	settled := false
	err := db.Transaction(func(tx *gorm.DB) error {
		// The write is conditional on the row still being pending, so the
		// job never flips an attempt a callback settled first.
		res := tx.
			Model(&models.Payment{}).
			Where(&models.Payment{ID: paymentId}).
			Where("status = ?", types.PAYMENT_PENDING).
			Updates(map[string]any{
				"status":         types.PAYMENT_FAILED,
				"failure_reason": "payment confirmation timed out",
			})
		if res.Error != nil {
			return res.Error
		}
		settled = res.RowsAffected == 0
		return nil
	})
	if err != nil {
		log.Printf("Error expiring payment [%s]: %s\n", paymentId, err.Error())
		return
	}
	if settled {
		log.Printf("[PaymentTimeouts] Payment [%s] already settled, skipping\n", paymentId)
		return
	}
	if err := utils.MarkBookingPaymentFailed(bookingId); err != nil {
		log.Printf("Error flagging booking [%d] after timeout: %s\n", bookingId, err.Error())
	}
}

func markJobTaskDone(payloadId string) {
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.JobTask{PayloadID: payloadId}).
			Updates(&models.JobTask{Status: "done"}).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error updating job status: %s\n", err.Error())
	}
}

func KafkaPaymentTimeoutsConsumer(spayload string) {
	if !gjson.Valid(spayload) {
		log.Println("Received invalid json body. Aborting")
		return
	}
	var msg types.JSONB
	if err := json.Unmarshal([]byte(spayload), &msg); err != nil {
		log.Printf("Error deserializing JSON: %s\n", err.Error())
		return
	}
	sid, _ := msg["id"].(string)
	paymentId, err := uuid.Parse(sid)
	if err != nil {
		log.Printf("[PaymentTimeouts] invalid payment id in payload: %s\n", sid)
		return
	}
	fid, _ := msg["bookingId"].(float64)
	bookingId := uint(fid)
	log.Printf("[PaymentTimeouts]: payment=%s booking=%d\n", paymentId, bookingId)

	go expirePaymentAttempt(paymentId, bookingId)

	if payloadId, ok := msg["payloadId"].(string); ok {
		go markJobTaskDone(payloadId)
	}
}

func KafkaPaymentUpdatesConsumer(spayload string) {
	if !gjson.Valid(spayload) {
		log.Println("Received invalid json body. Aborting")
		return
	}
	paymentId := gjson.Get(spayload, "payment_id").String()
	successful := gjson.Get(spayload, "successful").Bool()
	log.Printf("[PaymentUpdates]: payment=%s successful=%t\n", paymentId, successful)
	if successful {
		return
	}
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	// Failed attempts are kept around briefly so clients polling the
	// checkout can surface the reason without another db read.
	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := rd.SetEx(ctx, "payment:failed:"+paymentId, spayload, 15*time.Minute).Err(); err != nil {
		log.Printf("[redis] Error caching payment update: %s\n", err.Error())
	}
}

// PaymentTimeoutsConsumer drains the SQS queue fed by EventBridge schedules in
// deployed environments. Messages arrive wrapped in an SNS envelope.
func PaymentTimeoutsConsumer() {
	qname := utils.WithSuffix("PaymentTimeouts")
	log.Printf("%s: Listening for messages...", qname)
	c := awslib.NewSQSConsumer(qname, func(body string) {
		if !gjson.Valid(body) {
			log.Printf("[%s]: Received invalid json body. Aborting", qname)
			return
		}
		message := gjson.Get(body, "Message").String()
		if message == "" {
			message = body
		}
		KafkaPaymentTimeoutsConsumer(message)
	})
	c.Listen()
}
