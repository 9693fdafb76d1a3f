package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"commerce-app/subscription-service/internal/monitoring"
)

// changeChannel is consumed by collaborators that cache or index
// subscription data.
const changeChannel = "cache.clean.subscriptions"

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

type ChangeEvent struct {
	Kind           ChangeKind `json:"kind"`
	SubscriptionID string     `json:"subscriptionId"`
	UserID         string     `json:"userId"`
}

// ChangePublisher notifies collaborators about created/updated records.
// Fire-and-forget: a failed publish never fails the save.
type ChangePublisher interface {
	Publish(ctx context.Context, ev ChangeEvent)
}

type RedisChangePublisher struct {
	rdb *redis.Client
	log *monitoring.Logger
}

func NewRedisChangePublisher(rdb *redis.Client, log *monitoring.Logger) *RedisChangePublisher {
	return &RedisChangePublisher{rdb: rdb, log: log}
}

func (p *RedisChangePublisher) Publish(ctx context.Context, ev ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.WithFields(monitoring.Fields{"error": err}).Warn("change event marshal failed")
		return
	}
	if err := p.rdb.Publish(ctx, changeChannel, payload).Err(); err != nil {
		p.log.WithFields(monitoring.Fields{
			"error":           err,
			"subscription_id": ev.SubscriptionID,
		}).Warn("change event publish failed")
	}
}
