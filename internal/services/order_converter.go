package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"commerce-app/subscription-service/internal/billing"
	"commerce-app/subscription-service/internal/models"
	"commerce-app/subscription-service/internal/monitoring"
)

// OrderUpdater pushes the subscription ids back into the originating order.
type OrderUpdater interface {
	UpdateOrder(ctx context.Context, order *models.OrderTemplate) (*models.OrderTemplate, error)
}

// OrderConverter turns an order's subscribable line items into subscription
// records and links the created ids back into the order.
type OrderConverter struct {
	subs   *SubscriptionService
	orders OrderUpdater
	log    *monitoring.Logger
}

func NewOrderConverter(subs *SubscriptionService, orders OrderUpdater, log *monitoring.Logger) *OrderConverter {
	return &OrderConverter{subs: subs, orders: orders, log: log}
}

// OrderToSubscriptions creates one subscription per subscribable item.
// All-or-nothing at the batch level: a failed creation fails the whole
// conversion and no ids are written back into the order.
func (c *OrderConverter) OrderToSubscriptions(ctx context.Context, order *models.OrderTemplate, remoteAddr string) ([]*models.Subscription, error) {
	items := subscribableItems(order)
	if len(items) == 0 {
		return nil, nil
	}

	saved := make([]*models.Subscription, 0, len(items))
	for _, item := range items {
		sub := buildSubscription(order, item, remoteAddr)
		out, err := c.subs.Save(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("create subscription for item %s: %w", item.ID.Hex(), err)
		}
		c.log.WithSubscription(out.ID.Hex()).WithFields(logrus.Fields(monitoring.Fields{
			"orderOriginId": out.OrderOriginID,
		})).Info("conversion: subscription created")
		saved = append(saved, out)
	}

	pairs := make([]models.SubscriptionProductPair, 0, len(saved))
	byProduct := make(map[string]string, len(saved))
	for _, sub := range saved {
		productID := sub.Data.Product.ID.Hex()
		pairs = append(pairs, models.SubscriptionProductPair{
			Subscription: sub.ID.Hex(),
			Product:      productID,
		})
		byProduct[productID] = sub.ID.Hex()
	}

	if order.Data.Subscription == nil {
		order.Data.Subscription = &models.OrderSubscriptionInfo{Created: time.Now().UTC()}
	}
	order.Data.Subscription.IDs = pairs
	for i := range order.Items {
		if subID, ok := byProduct[order.Items[i].ID.Hex()]; ok {
			order.Items[i].SubscriptionID = subID
		}
	}

	if _, err := c.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}
	return saved, nil
}

func subscribableItems(order *models.OrderTemplate) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range order.Items {
		if item.Type == models.ItemTypeSubscription {
			items = append(items, item)
		}
	}
	return items
}

func buildSubscription(order *models.OrderTemplate, item models.OrderItem, remoteAddr string) *models.Subscription {
	sub := models.NewSubscription()
	now := time.Now().UTC()

	if item.Data != nil && item.Data.Subscription != nil {
		terms := item.Data.Subscription
		if terms.Period != "" {
			sub.Period = terms.Period
		}
		if terms.Duration > 0 {
			sub.Duration = terms.Duration
		}
		if terms.Cycles != 0 {
			sub.Cycles = terms.Cycles
		}
	}

	product := item.Clone()
	sub.Data.Product = &product
	sub.Data.Order = prepareOrderForSubscription(order, item)

	sub.UserID = order.User.ID
	sub.IP = remoteAddr
	sub.OrderOriginID = order.ID.Hex()
	sub.OrderItemName = localizedName(item, order.Lang.Code)
	sub.Price = item.Price

	sub.Dates.DateStart = now
	// first billing happens right after the customer accepts the plan
	sub.Dates.DateOrderNext = now
	sub.Dates.DateEnd = billing.EndDate(sub.Dates.DateStart, sub.Period, sub.Duration, sub.Cycles)

	sub.AppendHistory(models.NewHistoryEvent(models.ActionCreated, models.EventTypeUser, &models.HistoryEventData{
		Type:         "from order",
		RelatedOrder: order.ID.Hex(),
	}))

	sub.Status = models.StatusActive
	return sub
}

// prepareOrderForSubscription snapshots the originating order as a renewal
// template: identifiers, payment results, invoice and totals cleared,
// status reset to a cart, exactly the one subscribable item left in.
func prepareOrderForSubscription(order *models.OrderTemplate, item models.OrderItem) *models.OrderTemplate {
	tpl := order.Copy()

	tpl.ID = primitive.NilObjectID
	tpl.ExternalID = ""
	tpl.ExternalCode = ""
	tpl.Status = models.OrderStatusCart

	tpl.Dates.DatePaid = nil
	tpl.Dates.EmailSent = nil

	tpl.Data.PaymentData.PaymentRequestID = ""
	tpl.Data.PaymentData.LastStatus = ""
	tpl.Data.PaymentData.LastDate = nil
	tpl.Data.PaymentData.PaidAmountTotal = 0
	tpl.Data.PaymentData.LastResponseResult = []map[string]interface{}{}
	tpl.Invoice = nil

	tpl.Prices = models.OrderPrices{}

	if tpl.Data.Subscription == nil {
		tpl.Data.Subscription = &models.OrderSubscriptionInfo{Created: time.Now().UTC()}
	}

	tpl.Items = []models.OrderItem{item.Clone()}
	return tpl
}

func localizedName(item models.OrderItem, langCode string) string {
	if name, ok := item.Name[langCode]; ok {
		return name
	}
	for _, name := range item.Name {
		return name
	}
	return ""
}
