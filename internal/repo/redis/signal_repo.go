package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
)

// SignalRepo publishes core events to the external signaling channel.
// Offer/answer/candidate exchange rides the same channel but never touches
// this process.
type SignalRepo struct {
	client  *goredis.Client
	channel string
}

func NewSignalRepo(client *goredis.Client, channel string) *SignalRepo {
	if channel == "" {
		channel = "match.events"
	}
	return &SignalRepo{client: client, channel: channel}
}

func (r *SignalRepo) PublishMatch(ctx context.Context, event model.MatchEvent) error {
	return r.publish(ctx, "match_established", event)
}

func (r *SignalRepo) PublishBilling(ctx context.Context, event model.BillingEvent) error {
	return r.publish(ctx, "billing_debited", event)
}

func (r *SignalRepo) publish(ctx context.Context, name string, payload any) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	envelope := struct {
		Name    string `json:"name"`
		Payload any    `json:"payload"`
	}{Name: name, Payload: payload}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}

	return nil
}
