package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	applogger "CryptoVol/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
}

// Consumer runs one reader per registered topic and hands every message to
// its handler, retrying with backoff before committing the offset.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	handlers map[string]MessageHandler
	readers  []*kafka.Reader
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "cryptovol",
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Broadcast {
		cfg.GroupID = InstanceGroupID(cfg.GroupID)
	}
	return &Consumer{cfg: cfg, l: l, handlers: map[string]MessageHandler{}}, nil
}

func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start launches the readers; they run until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	for topic, h := range c.handlers {
		reader := kafka.NewReader(c.readerConfig(topic))
		c.readers = append(c.readers, reader)
		c.wg.Add(1)
		go c.consume(ctx, reader, h)
		c.l.Info("kafka consumer started", applogger.String("topic", topic), applogger.String("group", c.cfg.GroupID))
	}
	return nil
}

// InstanceGroupID appends the host name and a random suffix to prefix.
func InstanceGroupID(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, host, uuid.NewString()[:8])
}

func (c *Consumer) readerConfig(topic string) kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: kafka.FirstOffset,
	}
	if c.cfg.Broadcast {
		rc.StartOffset = kafka.LastOffset
	}
	return rc
}

func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}
		for _, r := range c.readers {
			if err := r.Close(); err != nil {
				c.l.Warn("kafka reader close", applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) consume(ctx context.Context, reader messageReader, h MessageHandler) {
	defer c.wg.Done()
	failures := 0
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			failures++
			c.l.Error("kafka fetch failed",
				applogger.String("topic", h.Topic()),
				applogger.Int("failures", failures),
				applogger.Error(err),
			)
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)):
			case <-ctx.Done():
				return
			}
			continue
		}
		failures = 0

		if err := c.handle(ctx, h, msg.Value); err != nil {
			c.l.Error("kafka message dropped after retries",
				applogger.String("topic", h.Topic()),
				applogger.Int64("offset", msg.Offset),
				applogger.Error(err),
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.l.Warn("kafka commit failed", applogger.String("topic", h.Topic()), applogger.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	for attempt := 1; ; attempt++ {
		err = safeHandle(ctx, h, data)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", h.Topic(), r)
		}
	}()
	return h.Handle(ctx, data)
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}
