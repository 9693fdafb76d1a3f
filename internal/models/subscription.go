package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionStatus string

const (
	StatusInactive          SubscriptionStatus = "inactive"
	StatusActive            SubscriptionStatus = "active"
	StatusSuspendRequest    SubscriptionStatus = "suspend request"
	StatusSuspended         SubscriptionStatus = "suspended"
	StatusReactivateRequest SubscriptionStatus = "reactivate request"
	StatusFinished          SubscriptionStatus = "finished"
	StatusError             SubscriptionStatus = "error"
)

type SubscriptionType string

const (
	TypeAutorefresh SubscriptionType = "autorefresh"
	TypeSingletime  SubscriptionType = "singletime"
)

type BillingPeriod string

const (
	PeriodDay   BillingPeriod = "day"
	PeriodWeek  BillingPeriod = "week"
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// MaxCycles caps bounded subscriptions; cycles outside (0, MaxCycles] mean
// the subscription runs without a repeat limit.
const MaxCycles = 1000

type SubscriptionDates struct {
	DateStart     time.Time  `bson:"dateStart"             json:"dateStart"`
	DateOrderNext time.Time  `bson:"dateOrderNext"         json:"dateOrderNext"`
	DateEnd       time.Time  `bson:"dateEnd"               json:"dateEnd"`
	DateCreated   time.Time  `bson:"dateCreated"           json:"dateCreated"`
	DateUpdated   time.Time  `bson:"dateUpdated"           json:"dateUpdated"`
	DateStopped   *time.Time `bson:"dateStopped,omitempty" json:"dateStopped,omitempty"`
	DateSynced    *time.Time `bson:"dateSynced,omitempty"  json:"dateSynced,omitempty"`
}

type SubscriptionData struct {
	Product    *OrderItem             `bson:"product"              json:"product" validate:"required"`
	Order      *OrderTemplate         `bson:"order,omitempty"      json:"order,omitempty"`
	RemoteData map[string]interface{} `bson:"remoteData,omitempty" json:"remoteData,omitempty"`
}

type Subscription struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"     json:"id,omitempty"`
	UserID        string             `bson:"userId"            json:"userId" validate:"required,min=3"`
	IP            string             `bson:"ip"                json:"ip" validate:"required,min=4"`
	Type          SubscriptionType   `bson:"type"              json:"type"`
	Period        BillingPeriod      `bson:"period"            json:"period" validate:"required,min=3"`
	Duration      float64            `bson:"duration"          json:"duration" validate:"required,gt=0"`
	Cycles        int                `bson:"cycles"            json:"cycles"`
	Status        SubscriptionStatus `bson:"status"            json:"status" validate:"required,min=3"`
	OrderOriginID string             `bson:"orderOriginId"     json:"orderOriginId" validate:"required,min=3"`
	OrderItemName string             `bson:"orderItemName"     json:"orderItemName" validate:"required,min=3"`
	Dates         SubscriptionDates  `bson:"dates"             json:"dates"`
	Price         float64            `bson:"price"             json:"price"`
	Data          SubscriptionData   `bson:"data"              json:"data"`
	History       []HistoryEvent     `bson:"history,omitempty" json:"history,omitempty"`
}

// NewSubscription returns the defaults a record starts from before the
// order conversion fills in the item-specific terms.
func NewSubscription() *Subscription {
	now := time.Now().UTC()
	return &Subscription{
		Type:     TypeAutorefresh,
		Period:   PeriodMonth,
		Duration: 1,
		Cycles:   0,
		Status:   StatusInactive,
		Dates: SubscriptionDates{
			DateStart:   now,
			DateEnd:     now.AddDate(1, 0, 0),
			DateCreated: now,
			DateUpdated: now,
		},
	}
}

// AppendHistory adds an event to the record's audit trail. Events are never
// mutated or removed once appended.
func (s *Subscription) AppendHistory(ev HistoryEvent) {
	s.History = append(s.History, ev)
}

// flexDate accepts the date encodings older clients still send: RFC3339
// strings, bare "2006-01-02" strings and unix-millisecond numbers.
type flexDate time.Time

func (f *flexDate) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = flexDate(time.Time{})
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = flexDate(time.Time{})
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				*f = flexDate(t)
				return nil
			}
		}
		return &time.ParseError{Layout: time.RFC3339, Value: raw}
	}
	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexDate(time.UnixMilli(millis).UTC())
	return nil
}

func (f flexDate) timePtr() *time.Time {
	t := time.Time(f)
	if t.IsZero() {
		return nil
	}
	return &t
}

// UnmarshalJSON normalizes every incoming date field into time.Time no
// matter how the caller encoded it.
func (d *SubscriptionDates) UnmarshalJSON(b []byte) error {
	var raw struct {
		DateStart     flexDate `json:"dateStart"`
		DateOrderNext flexDate `json:"dateOrderNext"`
		DateEnd       flexDate `json:"dateEnd"`
		DateCreated   flexDate `json:"dateCreated"`
		DateUpdated   flexDate `json:"dateUpdated"`
		DateStopped   flexDate `json:"dateStopped"`
		DateSynced    flexDate `json:"dateSynced"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.DateStart = time.Time(raw.DateStart)
	d.DateOrderNext = time.Time(raw.DateOrderNext)
	d.DateEnd = time.Time(raw.DateEnd)
	d.DateCreated = time.Time(raw.DateCreated)
	d.DateUpdated = time.Time(raw.DateUpdated)
	d.DateStopped = raw.DateStopped.timePtr()
	d.DateSynced = raw.DateSynced.timePtr()
	return nil
}
