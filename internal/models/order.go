package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemTypeSubscription flags an order line item as subscribable.
const ItemTypeSubscription = "subscription"

// OrderStatusCart is the pre-checkout status renewal templates are reset to.
const OrderStatusCart = "cart"

type OrderUser struct {
	ID    string `bson:"id"              json:"id"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

type OrderLang struct {
	Code string `bson:"code" json:"code"`
}

type OrderDates struct {
	DateCreated *time.Time `bson:"dateCreated,omitempty" json:"dateCreated,omitempty"`
	DatePaid    *time.Time `bson:"datePaid,omitempty"    json:"datePaid,omitempty"`
	EmailSent   *time.Time `bson:"emailSent,omitempty"   json:"emailSent,omitempty"`
}

type OrderPrices struct {
	PriceTotal      float64 `bson:"priceTotal"      json:"priceTotal"`
	PriceTotalNoTax float64 `bson:"priceTotalNoTax" json:"priceTotalNoTax"`
	PriceItems      float64 `bson:"priceItems"      json:"priceItems"`
	PriceItemsNoTax float64 `bson:"priceItemsNoTax" json:"priceItemsNoTax"`
	PriceTaxTotal   float64 `bson:"priceTaxTotal"   json:"priceTaxTotal"`
	PriceDelivery   float64 `bson:"priceDelivery"   json:"priceDelivery"`
	PricePayment    float64 `bson:"pricePayment"    json:"pricePayment"`
}

type PaymentData struct {
	Codename           string                   `bson:"codename,omitempty"           json:"codename,omitempty"`
	PaymentRequestID   string                   `bson:"paymentRequestId,omitempty"   json:"paymentRequestId,omitempty"`
	LastStatus         string                   `bson:"lastStatus,omitempty"         json:"lastStatus,omitempty"`
	LastDate           *time.Time               `bson:"lastDate,omitempty"           json:"lastDate,omitempty"`
	PaidAmountTotal    float64                  `bson:"paidAmountTotal,omitempty"    json:"paidAmountTotal,omitempty"`
	LastResponseResult []map[string]interface{} `bson:"lastResponseResult,omitempty" json:"lastResponseResult,omitempty"`
}

// SubscriptionProductPair links a created subscription to the order line
// item it was spawned from.
type SubscriptionProductPair struct {
	Subscription string `bson:"subscription" json:"subscription"`
	Product      string `bson:"product"      json:"product"`
}

type OrderSubscriptionInfo struct {
	Created time.Time                 `bson:"created" json:"created"`
	IDs     []SubscriptionProductPair `bson:"ids"     json:"ids"`
}

type OrderData struct {
	PaymentData  PaymentData            `bson:"paymentData"            json:"paymentData"`
	Subscription *OrderSubscriptionInfo `bson:"subscription,omitempty" json:"subscription,omitempty"`
}

// SubscriptionTerms are the billing terms embedded in a subscribable item.
type SubscriptionTerms struct {
	Period   BillingPeriod `bson:"period,omitempty"   json:"period,omitempty"`
	Duration float64       `bson:"duration,omitempty" json:"duration,omitempty"`
	Cycles   int           `bson:"cycles,omitempty"   json:"cycles,omitempty"`
}

type OrderItemData struct {
	Subscription *SubscriptionTerms `bson:"subscription,omitempty" json:"subscription,omitempty"`
}

type OrderItem struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"            json:"id,omitempty"`
	Type           string             `bson:"type"                     json:"type"`
	Name           map[string]string  `bson:"name"                     json:"name"`
	Price          float64            `bson:"price"                    json:"price"`
	Amount         int                `bson:"amount,omitempty"         json:"amount,omitempty"`
	SubscriptionID string             `bson:"subscriptionId,omitempty" json:"subscriptionId,omitempty"`
	Data           *OrderItemData     `bson:"data,omitempty"           json:"data,omitempty"`
}

// OrderTemplate is the snapshot of an order a subscription keeps for future
// renewals, and the shape exchanged with the order service.
type OrderTemplate struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty"          json:"id,omitempty"`
	ExternalID   string                 `bson:"externalId,omitempty"   json:"externalId,omitempty"`
	ExternalCode string                 `bson:"externalCode,omitempty" json:"externalCode,omitempty"`
	Status       string                 `bson:"status"                 json:"status"`
	User         OrderUser              `bson:"user"                   json:"user"`
	Lang         OrderLang              `bson:"lang"                   json:"lang"`
	Dates        OrderDates             `bson:"dates"                  json:"dates"`
	Items        []OrderItem            `bson:"items"                  json:"items"`
	Prices       OrderPrices            `bson:"prices"                 json:"prices"`
	Data         OrderData              `bson:"data"                   json:"data"`
	Invoice      map[string]interface{} `bson:"invoice,omitempty"      json:"invoice,omitempty"`
}

// Copy returns a deep copy so renewal and conversion can strip fields
// without touching the stored snapshot.
func (o *OrderTemplate) Copy() *OrderTemplate {
	dup := *o
	dup.Items = make([]OrderItem, len(o.Items))
	for i := range o.Items {
		dup.Items[i] = o.Items[i].Clone()
	}
	if o.Invoice != nil {
		dup.Invoice = make(map[string]interface{}, len(o.Invoice))
		for k, v := range o.Invoice {
			dup.Invoice[k] = v
		}
	}
	if o.Data.Subscription != nil {
		info := *o.Data.Subscription
		info.IDs = append([]SubscriptionProductPair(nil), o.Data.Subscription.IDs...)
		dup.Data.Subscription = &info
	}
	if o.Data.PaymentData.LastResponseResult != nil {
		dup.Data.PaymentData.LastResponseResult = append(
			[]map[string]interface{}(nil), o.Data.PaymentData.LastResponseResult...)
	}
	return &dup
}

// Clone deep-copies an item so snapshots never share maps with the live
// order.
func (it OrderItem) Clone() OrderItem {
	dup := it
	if it.Name != nil {
		dup.Name = make(map[string]string, len(it.Name))
		for k, v := range it.Name {
			dup.Name[k] = v
		}
	}
	if it.Data != nil {
		data := *it.Data
		if it.Data.Subscription != nil {
			terms := *it.Data.Subscription
			data.Subscription = &terms
		}
		dup.Data = &data
	}
	return dup
}
