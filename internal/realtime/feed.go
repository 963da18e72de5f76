package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

const eventChannel = "chat:events"

// ErrSubscribeFailed wraps any failure to establish the live feed connection.
// Callers fall back to plain fetches at their own discretion.
var ErrSubscribeFailed = errors.New("realtime: subscribe failed")

// Handler receives one message per logical creation event.
type Handler func(models.Message)

// Subscription is the cancellable handle returned by Feed.Subscribe.
// Unsubscribe is idempotent and safe after teardown.
type Subscription interface {
	Unsubscribe()
}

type Feed struct {
	client *redis.Client
}

func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

// PublishMessageCreated announces a freshly persisted message on the feed.
func (f *Feed) PublishMessageCreated(ctx context.Context, message *models.Message) error {
	payload, err := json.Marshal(Event{Kind: EventMessageCreated, Message: *message})
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, eventChannel, payload).Err()
}

// Subscribe opens a live subscription for the scope and pumps matching
// creation events into fn. The transport may deliver the same event more than
// once; the returned subscription suppresses redeliveries per message id.
func (f *Feed) Subscribe(ctx context.Context, scope Scope, fn Handler) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, eventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}

	sub := newSubscription(scope, fn, pubsub)
	go sub.pump(pubsub.Channel())
	return sub, nil
}

func (s *subscription) pump(events <-chan *redis.Message) {
	for raw := range events {
		var event Event
		if err := json.Unmarshal([]byte(raw.Payload), &event); err != nil {
			log.Printf("realtime: drop malformed event: %v", err)
			continue
		}
		s.dispatch(event)
	}
}
