package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pavelanni/mediarec/internal/metrics"
	"github.com/pavelanni/mediarec/internal/model"
)

// Emitter publishes recommendation-created notifications in the background.
// Delivery failures are logged and never reach the pipeline.
type Emitter struct {
	pub     message.Publisher
	topic   string
	breaker *gobreaker.CircuitBreaker[struct{}]
	wg      sync.WaitGroup
}

// NewEmitter returns an emitter publishing to topic.
func NewEmitter(pub message.Publisher, topic string) *Emitter {
	return &Emitter{
		pub:   pub,
		topic: topic,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "publisher",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
	}
}

// Emit schedules ev for publication and returns immediately.
func (e *Emitter) Emit(_ context.Context, ev model.RecommendationCreatedEvent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.publish(ev); err != nil {
			slog.Error("failed to publish recommendation event",
				"user_id", ev.UserID, "recommendation_id", ev.RecommendationID, "error", err)
			metrics.EventsPublished.WithLabelValues("error").Inc()
			return
		}
		slog.Info("published recommendation event",
			"user_id", ev.UserID, "recommendation_id", ev.RecommendationID, "count", ev.MediaCount)
		metrics.EventsPublished.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until every scheduled publication has finished.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

func (e *Emitter) publish(ev model.RecommendationCreatedEvent) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", ev.EventType)
	msg.Metadata.Set("user_id", ev.UserID)
	msg.Metadata.Set("recommendation_type", string(ev.RecommendationType))
	// The first recommendation id keys the batch for JetStream deduplication.
	msg.Metadata.Set(natsgo.MsgIdHdr, ev.RecommendationID)

	_, err = e.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, e.pub.Publish(e.topic, msg)
	})
	return err
}
