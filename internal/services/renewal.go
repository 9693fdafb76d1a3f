package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"commerce-app/subscription-service/internal/models"
	"commerce-app/subscription-service/internal/monitoring"
)

// OrderCreator is the slice of the order service the renewal batch needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error)
}

// RenewalLocker serializes renewal of a single record across overlapping
// runs. Lock returns the release func, or an error when another run holds
// the record.
type RenewalLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// RenewalResult is one record's outcome within a batch run.
type RenewalResult struct {
	SubscriptionID string               `json:"subscriptionId"`
	Success        bool                 `json:"success"`
	Error          string               `json:"error,omitempty"`
	Subscription   *models.Subscription `json:"subscription,omitempty"`
}

// RenewalOrchestrator drives the daily renewal batch: select due records,
// create one order per record, advance or finish each schedule, persist.
type RenewalOrchestrator struct {
	subs   *SubscriptionService
	repo   SubscriptionRepository
	orders OrderCreator
	locker RenewalLocker
	log    *monitoring.Logger
	now    func() time.Time
}

func NewRenewalOrchestrator(
	subs *SubscriptionService,
	repo SubscriptionRepository,
	orders OrderCreator,
	locker RenewalLocker,
	log *monitoring.Logger,
) *RenewalOrchestrator {
	return &RenewalOrchestrator{
		subs:   subs,
		repo:   repo,
		orders: orders,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// RunSubscriptions processes every due record once. Records are handled as
// independent concurrent units; one record's failure never aborts the
// others, its result entry carries the error instead. A failed record keeps
// its dateOrderNext and is naturally re-selected by the next run.
func (o *RenewalOrchestrator) RunSubscriptions(ctx context.Context) ([]RenewalResult, error) {
	today := o.now().UTC()

	due, err := o.repo.FindDue(ctx, today)
	if err != nil {
		return nil, err
	}
	o.log.WithFields(monitoring.Fields{"due": len(due)}).Info("renewal: batch selected")

	results := make([]RenewalResult, len(due))
	var wg sync.WaitGroup
	for i := range due {
		wg.Add(1)
		go func(i int, sub models.Subscription) {
			defer wg.Done()
			results[i] = o.renewOne(ctx, &sub, today)
		}(i, due[i])
	}
	wg.Wait()

	return results, nil
}

// Execute adapts the batch to the scheduler's BatchJob shape.
func (o *RenewalOrchestrator) Execute(ctx context.Context) (int, error) {
	results, err := o.RunSubscriptions(ctx)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, r := range results {
		if r.Success {
			processed++
		}
	}
	return processed, nil
}

func (o *RenewalOrchestrator) renewOne(ctx context.Context, sub *models.Subscription, today time.Time) RenewalResult {
	res := RenewalResult{SubscriptionID: sub.ID.Hex()}
	entry := o.log.WithSubscription(sub.ID.Hex())

	unlock, err := o.locker.Lock(ctx, "subscriptions:renewal:"+sub.ID.Hex())
	if err != nil {
		entry.Warn("renewal: record locked by another run, skipping")
		res.Error = "renewal already in progress"
		return res
	}
	defer unlock()

	// the batch selection is a snapshot; an overlapping run may have renewed
	// the record between selection and lock acquisition, so eligibility is
	// re-checked against storage before any order is issued
	fresh, err := o.repo.FindByID(ctx, sub.ID)
	if err != nil {
		entry.WithError(err).Error("renewal: reload failed")
		res.Error = err.Error()
		return res
	}
	if fresh.Status != models.StatusActive ||
		fresh.Dates.DateOrderNext.After(today) ||
		fresh.Dates.DateEnd.Before(today) {
		entry.Info("renewal: record no longer due, skipping")
		res.Error = "record no longer due"
		return res
	}
	sub = fresh

	if sub.Data.Order == nil {
		entry.Error("renewal: record has no stored order template")
		o.subs.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeAutomatic, &models.HistoryEventData{
			ErrorMsg: "order template missing",
		}))
		res.Error = "order template missing"
		return res
	}

	created, err := o.orders.CreateOrder(ctx, sub.Data.Order.Copy())
	if err != nil {
		entry.WithError(err).Error("renewal: order creation failed")
		o.subs.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeAutomatic, &models.HistoryEventData{
			ErrorMsg: "order creation failed: " + err.Error(),
		}))
		res.Error = err.Error()
		return res
	}

	AdvanceOrFinish(sub, today, created.ID.Hex())

	updated, err := o.subs.Save(ctx, sub)
	if err != nil {
		entry.WithError(err).Error("renewal: save failed")
		res.Error = err.Error()
		return res
	}

	entry.WithFields(logrus.Fields(monitoring.Fields{
		"status":        updated.Status,
		"dateOrderNext": updated.Dates.DateOrderNext,
		"relatedOrder":  created.ID.Hex(),
	})).Info("renewal: record processed")

	res.Success = true
	res.Subscription = updated
	return res
}
