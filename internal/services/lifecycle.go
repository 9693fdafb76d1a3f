package services

import (
	"fmt"
	"time"

	"commerce-app/subscription-service/internal/billing"
	"commerce-app/subscription-service/internal/models"
)

// Status transitions for a subscription record. Callers must operate on a
// record freshly loaded from storage so an overlapping trigger cannot
// resurrect a stale copy.

// RequestSuspend moves an active record into the suspend-request state and
// returns the billing-agreement id the external suspend call needs. When no
// prior "paid" event carries an agreement id the transition fails with
// models.ErrMissingAgreement and an error event is appended in place of the
// suspension.
func RequestSuspend(sub *models.Subscription) (string, error) {
	if sub.Status != models.StatusActive {
		return "", fmt.Errorf("%w: cannot suspend subscription in status %q", models.ErrInvalidTransition, sub.Status)
	}

	now := time.Now().UTC()
	sub.Status = models.StatusSuspendRequest
	sub.Dates.DateStopped = &now
	sub.AppendHistory(models.NewHistoryEvent(string(models.StatusSuspendRequest), models.EventTypeUser, nil))

	agreementID := models.LastAgreementID(sub.History)
	if agreementID == "" {
		sub.AppendHistory(models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "agreementId not found",
		}))
		return "", models.ErrMissingAgreement
	}
	return agreementID, nil
}

// ConfirmSuspend completes the suspension after the external agreement has
// been suspended.
func ConfirmSuspend(sub *models.Subscription) {
	sub.Status = models.StatusSuspended
	sub.AppendHistory(models.NewHistoryEvent(models.ActionSuspended, models.EventTypeUser, nil))
}

// RequestReactivate is the symmetric counterpart of RequestSuspend for
// suspended records.
func RequestReactivate(sub *models.Subscription) (string, error) {
	if sub.Status != models.StatusSuspended {
		return "", fmt.Errorf("%w: cannot reactivate subscription in status %q", models.ErrInvalidTransition, sub.Status)
	}

	now := time.Now().UTC()
	sub.Status = models.StatusReactivateRequest
	sub.Dates.DateStopped = &now
	sub.AppendHistory(models.NewHistoryEvent(string(models.StatusReactivateRequest), models.EventTypeUser, nil))

	agreementID := models.LastAgreementID(sub.History)
	if agreementID == "" {
		sub.AppendHistory(models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "agreementId not found",
		}))
		return "", models.ErrMissingAgreement
	}
	return agreementID, nil
}

// ConfirmReactivate completes the reactivation after the external agreement
// is active again.
func ConfirmReactivate(sub *models.Subscription) {
	sub.Status = models.StatusActive
	sub.AppendHistory(models.NewHistoryEvent(models.ActionReactivated, models.EventTypeUser, nil))
}

// AdvanceOrFinish moves the schedule forward after a successful renewal
// order: while the end date lies ahead the next order date advances one
// cycle, otherwise the record finishes. A record whose advanced date would
// overshoot the end date finishes too. Either way a "prolonged" event
// referencing the new order is appended.
func AdvanceOrFinish(sub *models.Subscription, today time.Time, relatedOrderID string) {
	if sub.Dates.DateEnd.After(today) {
		next := billing.NextOrderDate(sub.Period, sub.Duration, sub.Dates.DateOrderNext)
		sub.Dates.DateOrderNext = next
		// an active record never carries a next order date beyond its end
		// date; when the cadence overshoots, the cycle just created was the
		// last one
		if next.After(sub.Dates.DateEnd) {
			sub.Status = models.StatusFinished
		}
	} else {
		sub.Status = models.StatusFinished
	}
	sub.AppendHistory(models.NewHistoryEvent(models.ActionProlonged, models.EventTypeAutomatic, &models.HistoryEventData{
		RelatedOrder: relatedOrderID,
	}))
}

// MarkError is the any-state error transition for records whose schedule
// can no longer be driven (corrupt template, repeated provider rejects).
func MarkError(sub *models.Subscription, msg string) {
	sub.Status = models.StatusError
	sub.AppendHistory(models.NewHistoryEvent(models.ActionError, models.EventTypeAutomatic, &models.HistoryEventData{
		ErrorMsg: msg,
	}))
}
