package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/pavelanni/mediarec/internal/llm"
	"github.com/pavelanni/mediarec/internal/metrics"
	"github.com/pavelanni/mediarec/internal/model"
	"github.com/pavelanni/mediarec/internal/recommend"
)

const consumerHandlerName = "session-completed"

// SessionRunner runs the real-time pipeline for one session.
type SessionRunner interface {
	Run(ctx context.Context, lc model.LearningContext) (recommend.Result, error)
}

// Consumer feeds session-completed signals into the real-time pipeline.
// A handler error nacks the message so the bus redelivers it.
type Consumer struct {
	router *message.Router
	runner SessionRunner
	pool   *recommend.Pool
}

// NewConsumer wires a router to sub on cfg.InboundTopic. Runs share pool with
// the on-demand path.
func NewConsumer(sub message.Subscriber, runner SessionRunner, pool *recommend.Pool, cfg model.MessagingConfig, logger watermill.LoggerAdapter) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	if cfg.MaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     10 * cfg.RetryInterval,
			Multiplier:      2,
			Logger:          logger,
		}
		router.AddMiddleware(retry.Middleware)
	}

	c := &Consumer{router: router, runner: runner, pool: pool}
	router.AddConsumerHandler(consumerHandlerName, cfg.InboundTopic, sub, c.Handle)
	return c, nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once the router has started its handlers.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

// Close stops the router and waits for in-flight handlers.
func (c *Consumer) Close() error {
	return c.router.Close()
}

// Handle processes one message. Payloads that can never succeed are acked and
// dropped; everything else that fails is returned for redelivery.
func (c *Consumer) Handle(msg *message.Message) error {
	log := slog.Default().With("message_uuid", msg.UUID)

	lc, err := DecodeLearningContext(msg.Payload)
	if err != nil {
		log.Warn("dropping malformed session event", "error", err)
		metrics.EventsConsumed.WithLabelValues("malformed").Inc()
		return nil
	}
	log = log.With("session_id", lc.SessionID, "user_id", lc.UserID)

	err = c.pool.Do(msg.Context(), func(ctx context.Context) error {
		_, err := c.runner.Run(ctx, lc)
		return err
	})
	switch {
	case err == nil:
		metrics.EventsConsumed.WithLabelValues("ack").Inc()
		return nil
	case errors.Is(err, recommend.ErrInvalidTrigger), errors.Is(err, llm.ErrUnrecoverable):
		log.Error("dropping session event, redelivery cannot succeed", "error", err)
		metrics.EventsConsumed.WithLabelValues("dropped").Inc()
		return nil
	default:
		log.Warn("session event failed, requesting redelivery", "error", err)
		metrics.EventsConsumed.WithLabelValues("nack").Inc()
		return err
	}
}
