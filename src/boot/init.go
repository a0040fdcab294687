package boot

import (
	"log"
	"safaribuddy/src/common"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"safaribuddy/src/models"
	"safaribuddy/src/utils"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Tour{},
		&models.Booking{},
		&models.Payment{},
		&models.Review{},
		&models.JobTask{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker wires the messaging fabric. Local environments run everything
// through kafka, deployed environments consume the SQS queues fed by SNS.
func InitBroker() {
	go RecoverQueuedJobs()
	go UpdateExpiredJobs()

	if utils.IsProd() {
		common.SNSSubscribes()
		go common.SQSConsumers()
		return
	}

	go lib.KafkaCreateTopics(
		utils.WithSuffix("PaymentUpdates"),
		utils.WithSuffix("PaymentTimeouts"),
		utils.WithSuffix("EmailsToSend"),
	)
	go lib.KafkaTopicConsumer("payments", utils.WithSuffix("PaymentUpdates"), common.KafkaPaymentUpdatesConsumer)
	go lib.KafkaTopicConsumer("payments", utils.WithSuffix("PaymentTimeouts"), common.KafkaPaymentTimeoutsConsumer)
	go lib.KafkaTopicConsumer("emails", utils.WithSuffix("EmailsToSend"), common.KafkaEmailsToSendConsumer)
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}

// RecoverQueuedJobs re-enqueues pending timeout jobs that survived a restart.
func RecoverQueuedJobs() error {
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	db := db.GetDb()
	ss := db.Session(&gorm.Session{PrepareStmt: true})
	var jobTasks []models.JobTask
	today := time.Now()
	in1m := today.Add(1 * time.Minute)
	in3months := today.Add((24 * 30 * 3) * time.Hour)
	err = ss.
		Model(&models.JobTask{}).Select("id", "name", "payload", "runs_at").
		Where(&models.JobTask{Status: "pending", JobType: "OneTimeJobStartDateTime"}).
		Where("runs_at BETWEEN ? AND ?", in1m, in3months).
		Order("runs_at asc").
		Limit(100).
		Find(&jobTasks).
		Error
	if err != nil {
		log.Printf("Error retrieving jobs: %s\n", err.Error())
		return err
	}
	log.Printf("Found %d pending jobs", len(jobTasks))
	for _, jobTask := range jobTasks {
		log.Printf("Queueing: %s\n", jobTask.ID.String())
		payload := jobTask.Payload
		jobDef := gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(jobTask.RunsAt))
		jt := gocron.NewTask(func() {
			log.Println("Running scheduled task")
			clientId, _ := payload["producerClientId"].(string)
			topic, _ := payload["topic"].(string)
			err := lib.KafkaProduceMessage(clientId, topic, payload)
			if err != nil {
				log.Printf("Error on producing message: %s\n", err.Error())
				return
			}
		})
		job, err := sched.NewJob(
			jobDef,
			jt,
		)
		if err != nil {
			log.Printf("Failed to schedule job [%s]. Skipping: %s\n", jobTask.ID.String(), err.Error())
			continue
		}
		log.Printf("Added job to scheduler: name=%s id=%s job=%s\n", jobTask.Name, jobTask.ID.String(), job.ID().String())
	}

	return nil
}

// UpdateExpiredJobs marks jobs whose run time passed while the service was
// down. Their payment attempts settle through the regular timeout path once
// the customer retries.
func UpdateExpiredJobs() {
	db := db.GetDb()
	err := db.
		Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&models.JobTask{}).
				Where("status", "pending").
				Where("runs_at < ?", time.Now()).
				Update("status", "expired").Error
			if err != nil {
				return err
			}
			return nil
		})
	if err != nil {
		log.Printf("Error while processing expired jobs: %s\n", err.Error())
	}
}
