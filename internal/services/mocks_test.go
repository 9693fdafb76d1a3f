package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"commerce-app/subscription-service/internal/models"
	"commerce-app/subscription-service/internal/monitoring"
	"commerce-app/subscription-service/internal/repository"
	"commerce-app/subscription-service/internal/utils"
)

// fakeRepo is an in-memory SubscriptionRepository; it honors the equality
// and date-range predicates the service layer actually issues.
type fakeRepo struct {
	mu    sync.Mutex
	store map[primitive.ObjectID]models.Subscription
}

func newFakeRepo(subs ...models.Subscription) *fakeRepo {
	r := &fakeRepo{store: make(map[primitive.ObjectID]models.Subscription)}
	for _, s := range subs {
		if s.ID.IsZero() {
			s.ID = primitive.NewObjectID()
		}
		r.store[s.ID] = s
	}
	return r
}

func (r *fakeRepo) Find(_ context.Context, filter repository.ListFilter) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Subscription
	for _, s := range r.store {
		if matches(s, filter.Query) {
			out = append(out, s)
		}
	}
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(s models.Subscription, query bson.M) bool {
	for key, want := range query {
		switch key {
		case "_id":
			if id, ok := want.(primitive.ObjectID); !ok || s.ID != id {
				return false
			}
		case "userId":
			if s.UserID != want {
				return false
			}
		case "orderItemName":
			if s.OrderItemName != want {
				return false
			}
		case "status":
			if s.Status != want {
				return false
			}
		}
	}
	return true
}

func (r *fakeRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *fakeRepo) FindDue(_ context.Context, today time.Time) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Subscription
	for _, s := range r.store {
		if s.Status == models.StatusActive &&
			!s.Dates.DateOrderNext.After(today) &&
			!s.Dates.DateEnd.Before(today) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindActiveDuplicates(_ context.Context, userID, orderItemName string) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Subscription
	for _, s := range r.store {
		if s.UserID == userID && s.OrderItemName == orderItemName && s.Status == models.StatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) Insert(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub.ID = primitive.NewObjectID()
	r.store[sub.ID] = *sub
	return nil
}

func (r *fakeRepo) UpdateByID(_ context.Context, id primitive.ObjectID, sub *models.Subscription) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return nil, models.ErrNotFound
	}
	body := *sub
	body.ID = id
	r.store[id] = body
	return &body, nil
}

func (r *fakeRepo) get(id primitive.ObjectID) models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store[id]
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (p *capturePublisher) Publish(_ context.Context, ev ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) kinds() []ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ChangeKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeBilling struct {
	mu           sync.Mutex
	suspended    []string
	reactivated  []string
	failSuspend  bool
	failReactive bool
}

func (b *fakeBilling) SuspendAgreement(_ context.Context, agreementID string) (*utils.AgreementResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSuspend {
		return nil, &models.ExternalCallError{Service: "billing", Err: errors.New("provider unavailable")}
	}
	b.suspended = append(b.suspended, agreementID)
	return &utils.AgreementResult{ID: agreementID, State: "Suspended"}, nil
}

func (b *fakeBilling) ReactivateAgreement(_ context.Context, agreementID string) (*utils.AgreementResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failReactive {
		return nil, &models.ExternalCallError{Service: "billing", Err: errors.New("provider unavailable")}
	}
	b.reactivated = append(b.reactivated, agreementID)
	return &utils.AgreementResult{ID: agreementID, State: "Active"}, nil
}

// fakeOrders serves both OrderCreator and OrderUpdater. failFor makes
// creation fail for templates belonging to that user.
type fakeOrders struct {
	mu      sync.Mutex
	failFor string
	created []*models.OrderTemplate
	updated []*models.OrderTemplate
}

func (o *fakeOrders) CreateOrder(_ context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failFor != "" && order.User.ID == o.failFor {
		return nil, &models.ExternalCallError{Service: "orders", Err: errors.New("order service unavailable")}
	}
	created := order.Copy()
	created.ID = primitive.NewObjectID()
	o.created = append(o.created, created)
	return created, nil
}

func (o *fakeOrders) UpdateOrder(_ context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updated = append(o.updated, order)
	return order, nil
}

func (o *fakeOrders) createdCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.created)
}

func (o *fakeOrders) updatedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.updated)
}

type fakeLocker struct {
	locked bool
}

func (l *fakeLocker) Lock(_ context.Context, _ string) (func(), error) {
	if l.locked {
		return nil, errors.New("lock already taken")
	}
	return func() {}, nil
}

func newTestService(repo *fakeRepo, billing *fakeBilling, publisher *capturePublisher) *SubscriptionService {
	return NewSubscriptionService(repo, billing, publisher, monitoring.NewLogger())
}

// testSubscription builds a valid active record ready to be stored.
func testSubscription(userID, itemName string) models.Subscription {
	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	product := models.OrderItem{
		ID:    primitive.NewObjectID(),
		Type:  models.ItemTypeSubscription,
		Name:  map[string]string{"en": itemName},
		Price: 9.99,
	}
	return models.Subscription{
		UserID:        userID,
		IP:            "10.0.0.1:51234",
		Type:          models.TypeAutorefresh,
		Period:        models.PeriodMonth,
		Duration:      1,
		Cycles:        0,
		Status:        models.StatusActive,
		OrderOriginID: primitive.NewObjectID().Hex(),
		OrderItemName: itemName,
		Dates: models.SubscriptionDates{
			DateStart:     now,
			DateOrderNext: now.AddDate(0, 1, 0),
			DateEnd:       now.AddDate(models.MaxCycles, 0, 0),
			DateCreated:   now,
			DateUpdated:   now,
		},
		Price: 9.99,
		Data: models.SubscriptionData{
			Product: &product,
			Order: &models.OrderTemplate{
				Status: models.OrderStatusCart,
				User:   models.OrderUser{ID: userID},
				Lang:   models.OrderLang{Code: "en"},
				Items:  []models.OrderItem{product},
			},
		},
		History: []models.HistoryEvent{
			models.NewHistoryEvent(models.ActionCreated, models.EventTypeUser, nil),
		},
	}
}

func paidEvent(agreementID string) models.HistoryEvent {
	return models.NewHistoryEvent(models.ActionPaid, models.EventTypeAutomatic, &models.HistoryEventData{
		ID: agreementID,
	})
}
