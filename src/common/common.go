package common

import (
	"context"
	"log"
	"safaribuddy/src/lib"
	awslib "safaribuddy/src/lib/aws"
	"time"
)

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func SQSConsumers() {
	dlq := awslib.NewSQSConsumer("DLQ", func(payload string) {
		log.Println("DLQ: message received")
	})
	dlq.Listen()

	go PaymentTimeoutsConsumer()
	go EmailsToSendConsumer()
}

func SNSSubscribes() {
	paymentUpdates := awslib.NewSNSSubscriber("PaymentUpdates")
	paymentUpdates.Subscribe("sqs", lib.GetQueueArn("PaymentUpdates"))
	paymentTimeouts := awslib.NewSNSSubscriber("PaymentTimeouts")
	paymentTimeouts.Subscribe("sqs", lib.GetQueueArn("PaymentTimeouts"))
	emailsToSend := awslib.NewSNSSubscriber("EmailsToSend")
	emailsToSend.Subscribe("sqs", lib.GetQueueArn("EmailsToSend"))
}
