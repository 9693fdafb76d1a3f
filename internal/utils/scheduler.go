package utils

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"commerce-app/subscription-service/internal/monitoring"
)

// BatchJob is a scheduled batch run; Execute returns the number of records
// it processed successfully.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// Scheduler drives the daily renewal batch on a cron expression.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *monitoring.Logger
}

func NewScheduler(log *monitoring.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Scheduler{scheduler: s, log: log}, nil
}

func (s *Scheduler) RegisterRenewalJob(cronExpr string, job BatchJob) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()

			s.log.Info("scheduler: starting renewal batch")
			processed, err := job.Execute(ctx)
			if err != nil {
				s.log.WithFields(monitoring.Fields{"error": err}).Error("scheduler: renewal batch failed")
				return
			}
			s.log.WithFields(monitoring.Fields{"processed": processed}).Info("scheduler: renewal batch finished")
		}),
	)
	return err
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
