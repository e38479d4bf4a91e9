package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/application"
	orderdom "github.com/dmehra2102/inventory-order-system/internal/order/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/idempotency"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
	"github.com/dmehra2102/inventory-order-system/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// Consumer keeps the product cache coherent with stock changes committed by
// the order service.
type Consumer struct {
	log      *slog.Logger
	reader   Reader
	cache    application.ProductCache
	idem     *idempotency.Store
	tracer   trace.Tracer
	attempts int
	backoff  time.Duration
}

type Option func(*Consumer)

// WithRetry sets how many times a message is handled before it is given up
// on, and the delay before the first retry. The delay doubles per attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Consumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewConsumer(log *slog.Logger, reader Reader, cache application.ProductCache, idem *idempotency.Store, opts ...Option) *Consumer {
	c := &Consumer{
		log:      log,
		reader:   reader,
		cache:    cache,
		idem:     idem,
		tracer:   otel.Tracer("catalog-consumer"),
		attempts: 5,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// the listing still expires on its own TTL
			c.log.Error("order event dropped after retries", "offset", msg.Offset, "attempts", c.attempts, "err", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// handleWithRetry keeps the message in place until Handle succeeds, the
// attempts run out or ctx is done. Later offsets wait behind it.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.Handle(ctx, msg)
		if err == nil || attempt >= c.attempts {
			return err
		}
		c.log.Warn("order event handling failed, retrying", "offset", msg.Offset, "attempt", attempt, "err", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

// Handle processes one message at most once per (topic, partition, offset).
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	eventType := tracing.HeaderValue(msg.Headers, outbox.EventTypeHeader)
	if eventType != orderdom.EventOrderCreated {
		c.log.Debug("ignoring event", "type", eventType)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderCreated")
	defer span.End()

	var ev orderdom.OrderCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// a payload that never parses must not be retried forever
		c.log.Error("unmarshal failed", "err", err)
		return nil
	}
	span.SetAttributes(attribute.String("order.id", ev.OrderID))

	if err := c.cache.Invalidate(msgCtx); err != nil {
		if ferr := c.idem.Forget(ctx, key); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return err
	}
	c.log.Info("product cache invalidated", "order_id", ev.OrderID, "items", len(ev.Items))
	return nil
}
