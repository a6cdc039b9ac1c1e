package searchsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultRetryPause is how long the consumer waits before its single
// retry of a transiently failed message.
const DefaultRetryPause = time.Second

// Consumer drains the queue and applies each update request through
// the coordinator. Acknowledgement is decided by error class, never by
// panics or control flow:
//
//   - success: acknowledge
//   - malformed payload: log, acknowledge (redelivery cannot fix it)
//   - transient failure: reset store connections, pause, retry once;
//     acknowledge if the retry succeeds, otherwise leave the message
//     unacknowledged for redelivery
//   - permanent failure: log, acknowledge (retrying deterministic
//     failures would wedge the queue)
type Consumer struct {
	queue       Queue
	coordinator *Coordinator
	store       EntityStore
	logger      Logger
	metrics     Metrics
	retryPause  time.Duration
}

// NewConsumer creates a consumer.
func NewConsumer(queue Queue, coordinator *Coordinator, store EntityStore) *Consumer {
	return &Consumer{
		queue:       queue,
		coordinator: coordinator,
		store:       store,
		logger:      &NoOpLogger{},
		metrics:     &NoOpMetrics{},
		retryPause:  DefaultRetryPause,
	}
}

// WithLogger sets the logger.
func (c *Consumer) WithLogger(logger Logger) *Consumer {
	c.logger = logger
	return c
}

// WithMetrics sets the metrics collector.
func (c *Consumer) WithMetrics(metrics Metrics) *Consumer {
	c.metrics = metrics
	return c
}

// WithRetryPause overrides the pause before the single retry.
func (c *Consumer) WithRetryPause(pause time.Duration) *Consumer {
	c.retryPause = pause
	return c
}

// RunBatch opens a session and processes messages until the queue is
// empty or max messages were handled (max <= 0 means no limit). It
// returns how many messages it processed.
func (c *Consumer) RunBatch(ctx context.Context, max int) (int, error) {
	session, err := c.queue.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer session.Close()

	processed := 0
	for max <= 0 || processed < max {
		msg, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				return processed, nil
			}
			return processed, err
		}
		c.handle(ctx, session, msg)
		processed++
	}
	return processed, nil
}

// RunDaemon processes messages until the context is canceled.
func (c *Consumer) RunDaemon(ctx context.Context) error {
	session, err := c.queue.Open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	for {
		msg, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.handle(ctx, session, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, session QueueSession, msg *Message) {
	if c.process(ctx, msg) {
		if err := session.Ack(ctx, msg); err != nil {
			c.logger.Error("failed to acknowledge message",
				"message_id", msg.ID,
				"error", err,
			)
		}
	}
}

// process applies one message and reports whether to acknowledge it.
func (c *Consumer) process(ctx context.Context, msg *Message) bool {
	action, id, err := decodeRequest(msg.Body)
	if err != nil {
		// Malformed messages are acknowledged: redelivering bytes that
		// cannot be decoded only wedges the queue.
		c.logger.Warn("discarding malformed queue message",
			"message_id", msg.ID,
			"error", err,
		)
		c.metrics.Increment(MetricConsumerRejected)
		return true
	}

	err = c.coordinator.Apply(ctx, action, id)
	if err == nil {
		c.metrics.Increment(MetricConsumerAck)
		return true
	}

	if IsPermanent(err) {
		c.logger.Error("update failed permanently, discarding message",
			"message_id", msg.ID,
			"identifier", id.String(),
			"error", err,
		)
		c.metrics.Increment(MetricConsumerRejected)
		return true
	}

	// Transient failure. Stale pooled connections are the most common
	// cause, so drop them before the retry.
	c.logger.Warn("transient failure, retrying once",
		"message_id", msg.ID,
		"identifier", id.String(),
		"error", err,
	)
	c.store.Reset()
	if !pause(ctx, c.retryPause) {
		c.metrics.Increment(MetricConsumerUnacked)
		return false
	}

	c.metrics.Increment(MetricConsumerRetry)
	if err := c.coordinator.Apply(ctx, action, id); err != nil {
		// Leave the message unacknowledged; the queue will redeliver
		// it to a later session once the outage clears.
		c.logger.Error("retry failed, leaving message unacknowledged",
			"message_id", msg.ID,
			"identifier", id.String(),
			"error", err,
		)
		c.metrics.Increment(MetricConsumerUnacked)
		return false
	}

	c.metrics.Increment(MetricConsumerAck)
	return true
}

// decodeRequest validates a queue payload. Any failure here marks the
// message malformed.
func decodeRequest(body []byte) (Action, Identifier, error) {
	var req UpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", Identifier{}, WithContext(ErrInvalidMessage, map[string]interface{}{
			"reason": err.Error(),
		})
	}
	id, err := ParseIdentifier(req.Identifier)
	if err != nil {
		return "", Identifier{}, err
	}
	return req.Action(), id, nil
}

// pause sleeps for d unless ctx ends first. Reports whether the full
// pause elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
