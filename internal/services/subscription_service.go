package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"commerce-app/subscription-service/internal/models"
	"commerce-app/subscription-service/internal/monitoring"
	"commerce-app/subscription-service/internal/repository"
	"commerce-app/subscription-service/internal/utils"
)

// listLimitMax caps the public read surface regardless of what the caller
// asks for.
const listLimitMax = 20

// SubscriptionRepository is the slice of storage the service layer uses.
type SubscriptionRepository interface {
	Find(ctx context.Context, filter repository.ListFilter) ([]models.Subscription, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscription, error)
	FindDue(ctx context.Context, today time.Time) ([]models.Subscription, error)
	FindActiveDuplicates(ctx context.Context, userID, orderItemName string) ([]models.Subscription, error)
	Insert(ctx context.Context, sub *models.Subscription) error
	UpdateByID(ctx context.Context, id primitive.ObjectID, sub *models.Subscription) (*models.Subscription, error)
}

// BillingAgreementClient suspends and reactivates the payment provider's
// recurring billing agreements.
type BillingAgreementClient interface {
	SuspendAgreement(ctx context.Context, agreementID string) (*utils.AgreementResult, error)
	ReactivateAgreement(ctx context.Context, agreementID string) (*utils.AgreementResult, error)
}

type SubscriptionService struct {
	repo      SubscriptionRepository
	billing   BillingAgreementClient
	publisher ChangePublisher
	validate  *validator.Validate
	log       *monitoring.Logger
}

func NewSubscriptionService(
	repo SubscriptionRepository,
	billing BillingAgreementClient,
	publisher ChangePublisher,
	log *monitoring.Logger,
) *SubscriptionService {
	validate := validator.New()
	validate.RegisterStructValidation(validateActiveSchedule, models.Subscription{})
	return &SubscriptionService{
		repo:      repo,
		billing:   billing,
		publisher: publisher,
		validate:  validate,
		log:       log,
	}
}

// validateActiveSchedule rejects writes where an active record's next order
// date lies beyond its end date. Only active records are constrained:
// finished and errored ones keep whatever schedule they stopped with.
func validateActiveSchedule(sl validator.StructLevel) {
	sub := sl.Current().Interface().(models.Subscription)
	if sub.Status == models.StatusActive && sub.Dates.DateOrderNext.After(sub.Dates.DateEnd) {
		sl.ReportError(sub.Dates.DateOrderNext, "dateOrderNext", "DateOrderNext", "ltefield", "dateEnd")
	}
}

// Save upserts a record: update when the id resolves to a stored record,
// insert otherwise. Every mutation is re-validated; validation failure
// aborts before any write.
func (s *SubscriptionService) Save(ctx context.Context, entity *models.Subscription) (*models.Subscription, error) {
	if !entity.ID.IsZero() {
		found, err := s.repo.FindByID(ctx, entity.ID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if found != nil {
			return s.update(ctx, entity)
		}
	}
	return s.insert(ctx, entity)
}

func (s *SubscriptionService) update(ctx context.Context, entity *models.Subscription) (*models.Subscription, error) {
	if err := s.validate.Struct(entity); err != nil {
		s.log.WithSubscription(entity.ID.Hex()).WithError(err).Error("subscription update validation failed")
		return nil, &models.ValidationError{Err: err}
	}

	now := time.Now().UTC()
	entity.Dates.DateUpdated = now
	entity.Dates.DateSynced = &now

	updated, err := s.repo.UpdateByID(ctx, entity.ID, entity)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, ChangeEvent{
		Kind:           ChangeUpdated,
		SubscriptionID: updated.ID.Hex(),
		UserID:         updated.UserID,
	})
	return updated, nil
}

func (s *SubscriptionService) insert(ctx context.Context, entity *models.Subscription) (*models.Subscription, error) {
	if err := s.validate.Struct(entity); err != nil {
		s.log.WithError(err).Error("subscription insert validation failed")
		return nil, &models.ValidationError{Err: err}
	}

	// advisory only: a user holding two active subscriptions for the same
	// item is suspicious but not forbidden
	if dups, err := s.repo.FindActiveDuplicates(ctx, entity.UserID, entity.OrderItemName); err == nil && len(dups) > 0 {
		s.log.WithFields(monitoring.Fields{
			"userId":        entity.UserID,
			"orderItemName": entity.OrderItemName,
			"duplicates":    len(dups),
		}).Warn("found similar active subscription on insert")
	}

	now := time.Now().UTC()
	if entity.Dates.DateCreated.IsZero() {
		entity.Dates.DateCreated = now
	}
	entity.Dates.DateUpdated = now
	entity.ID = primitive.NilObjectID // storage assigns the identifier

	if err := s.repo.Insert(ctx, entity); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, ChangeEvent{
		Kind:           ChangeCreated,
		SubscriptionID: entity.ID.Hex(),
		UserID:         entity.UserID,
	})
	return entity, nil
}

// ListParams carries the public read surface inputs.
type ListParams struct {
	Query    bson.M
	Limit    int64
	Offset   int64
	Sort     string
	FullData bool
	UserID   string
	IsAdmin  bool
}

// List returns the caller's subscriptions. Non-administrative callers are
// always constrained to their own userId; only an admin asking for full
// data sees other owners' records. The read path degrades to an empty
// result on internal failure.
func (s *SubscriptionService) List(ctx context.Context, p ListParams) []models.Subscription {
	filter := repository.ListFilter{
		Query: bson.M{},
		Limit: listLimitMax,
		Sort:  "-dates.dateCreated",
	}
	if p.Query != nil {
		filter.Query = p.Query
	}
	if !(p.IsAdmin && p.FullData) {
		filter.Query["userId"] = p.UserID
	}
	if p.Offset > 0 {
		filter.Offset = p.Offset
	}
	if p.Limit > 0 {
		filter.Limit = p.Limit
	}
	if filter.Limit > listLimitMax {
		filter.Limit = listLimitMax
	}
	if p.Sort != "" {
		filter.Sort = p.Sort
	}

	// an id in the query pins the result to a single record
	if raw, ok := filter.Query["_id"]; ok {
		if idHex, ok := raw.(string); ok && strings.TrimSpace(idHex) != "" {
			if oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(idHex)); err == nil {
				filter.Query["_id"] = oid
				filter.Limit = 1
			}
		}
	}

	subs, err := s.repo.Find(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("subscription list failed")
		return nil
	}

	if filter.Limit > 1 {
		for i := range subs {
			subs[i].History = nil
		}
	}
	return subs
}

// Import bulk-saves records; restricted to administrative callers.
func (s *SubscriptionService) Import(ctx context.Context, role string, entities []*models.Subscription) ([]*models.Subscription, error) {
	if role != "admin" {
		return nil, models.ErrPermissionDenied
	}

	saved := make([]*models.Subscription, 0, len(entities))
	for _, entity := range entities {
		out, err := s.Save(ctx, entity)
		if err != nil {
			return nil, err
		}
		saved = append(saved, out)
	}
	return saved, nil
}

// TransitionResult is the structured outcome of a suspend or reactivate so
// the caller can decide whether to retry instead of catching an error.
type TransitionResult struct {
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Subscription *models.Subscription   `json:"subscription,omitempty"`
	Agreement    *utils.AgreementResult `json:"agreement,omitempty"`
}

// Suspend pauses an active subscription: suspend request state, external
// agreement suspension, then the suspended state is persisted.
func (s *SubscriptionService) Suspend(ctx context.Context, idHex, userID string, isAdmin bool) (*TransitionResult, error) {
	sub, err := s.findOwned(ctx, idHex, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	agreementID, err := RequestSuspend(sub)
	if errors.Is(err, models.ErrInvalidTransition) {
		return nil, err
	}
	if errors.Is(err, models.ErrMissingAgreement) {
		s.log.WithSubscription(sub.ID.Hex()).Error("suspend: agreementId not found")
		s.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "agreementId not found",
		}))
		return &TransitionResult{Error: "agreementId not found"}, nil
	}

	agreement, err := s.billing.SuspendAgreement(ctx, agreementID)
	if err != nil {
		s.log.WithSubscription(sub.ID.Hex()).WithError(err).Error("suspend: agreement call failed")
		s.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "suspendAgreement error",
		}))
		return &TransitionResult{Error: "suspendAgreement"}, nil
	}

	ConfirmSuspend(sub)
	updated, err := s.Save(ctx, sub)
	if err != nil {
		s.log.WithSubscription(sub.ID.Hex()).WithError(err).Error("suspend: save failed")
		return &TransitionResult{Error: "save"}, nil
	}

	updated.History = nil
	return &TransitionResult{Success: true, Subscription: updated, Agreement: agreement}, nil
}

// Reactivate resumes a suspended subscription through the symmetric path.
func (s *SubscriptionService) Reactivate(ctx context.Context, idHex, userID string, isAdmin bool) (*TransitionResult, error) {
	sub, err := s.findOwned(ctx, idHex, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	agreementID, err := RequestReactivate(sub)
	if errors.Is(err, models.ErrInvalidTransition) {
		return nil, err
	}
	if errors.Is(err, models.ErrMissingAgreement) {
		s.log.WithSubscription(sub.ID.Hex()).Error("reactivate: agreementId not found")
		s.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "agreementId not found",
		}))
		return &TransitionResult{Error: "agreementId not found"}, nil
	}

	agreement, err := s.billing.ReactivateAgreement(ctx, agreementID)
	if err != nil {
		s.log.WithSubscription(sub.ID.Hex()).WithError(err).Error("reactivate: agreement call failed")
		s.addToHistory(ctx, sub.ID, models.NewHistoryEvent(models.ActionError, models.EventTypeUser, &models.HistoryEventData{
			ErrorMsg: "reactivateAgreement error",
		}))
		return &TransitionResult{Error: "reactivateAgreement"}, nil
	}

	ConfirmReactivate(sub)
	updated, err := s.Save(ctx, sub)
	if err != nil {
		s.log.WithSubscription(sub.ID.Hex()).WithError(err).Error("reactivate: save failed")
		return &TransitionResult{Error: "save"}, nil
	}

	updated.History = nil
	return &TransitionResult{Success: true, Subscription: updated, Agreement: agreement}, nil
}

// findOwned loads a record fresh from storage, constrained to the caller's
// userId unless the caller is an admin.
func (s *SubscriptionService) findOwned(ctx context.Context, idHex, userID string, isAdmin bool) (*models.Subscription, error) {
	oid, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, models.ErrNotFound
	}

	query := bson.M{"_id": oid}
	if !isAdmin {
		query["userId"] = userID
	}

	found, err := s.repo.Find(ctx, repository.ListFilter{Query: query, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, models.ErrNotFound
	}
	return &found[0], nil
}

// addToHistory appends one event to the stored copy of a record, leaving
// every other field as persisted.
func (s *SubscriptionService) addToHistory(ctx context.Context, id primitive.ObjectID, ev models.HistoryEvent) {
	fresh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.WithSubscription(id.Hex()).WithError(err).Error("history append: load failed")
		return
	}
	fresh.AppendHistory(ev)
	if _, err := s.Save(ctx, fresh); err != nil {
		s.log.WithSubscription(id.Hex()).WithError(err).Error("history append: save failed")
	}
}
