package models

import "time"

type HistoryEventType string

const (
	EventTypeUser      HistoryEventType = "user"
	EventTypeAutomatic HistoryEventType = "automatic"
)

// History actions as stored in existing documents.
const (
	ActionCreated     = "created"
	ActionProlonged   = "prolonged"
	ActionStopped     = "stopped"
	ActionPaused      = "paused"
	ActionPaid        = "paid"
	ActionSuspended   = "suspended"
	ActionReactivated = "reactivated"
	ActionError       = "error"
)

type HistoryEventData struct {
	// ID carries the billing-agreement identifier on "paid" events.
	ID           string `bson:"id,omitempty"           json:"id,omitempty"`
	Type         string `bson:"type,omitempty"         json:"type,omitempty"`
	RelatedOrder string `bson:"relatedOrder,omitempty" json:"relatedOrder,omitempty"`
	ErrorMsg     string `bson:"errorMsg,omitempty"     json:"errorMsg,omitempty"`
}

type HistoryEvent struct {
	Action string            `bson:"action"         json:"action" validate:"required"`
	Type   HistoryEventType  `bson:"type"           json:"type" validate:"required"`
	Date   time.Time         `bson:"date"           json:"date"`
	Data   *HistoryEventData `bson:"data,omitempty" json:"data,omitempty"`
}

func NewHistoryEvent(action string, evType HistoryEventType, data *HistoryEventData) HistoryEvent {
	if action == "" {
		action = ActionCreated
	}
	if evType == "" {
		evType = EventTypeUser
	}
	return HistoryEvent{
		Action: action,
		Type:   evType,
		Date:   time.Now().UTC(),
		Data:   data,
	}
}

// LastAgreementID returns the billing-agreement id recorded by the most
// recent "paid" event, or "" when the record was never paid through an
// agreement.
func LastAgreementID(history []HistoryEvent) string {
	for i := len(history) - 1; i >= 0; i-- {
		ev := history[i]
		if ev.Action == ActionPaid && ev.Data != nil && ev.Data.ID != "" {
			return ev.Data.ID
		}
	}
	return ""
}
