package searchsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list used when no name is configured.
const DefaultQueueName = "searchsync:updates"

// defaultPollTimeout bounds one blocking pop so consumers can notice
// context cancellation and empty-queue conditions.
const defaultPollTimeout = time.Second

// queueEnvelope wraps a payload with a delivery id so acknowledgement
// can remove exactly one pending entry. The body is opaque bytes; the
// queue never inspects it.
type queueEnvelope struct {
	ID   string `json:"id"`
	Body []byte `json:"body"`
}

// RedisQueue is a durable Queue on a Redis list. Producers LPUSH onto
// the main list; consumers atomically move entries to a pending list
// and remove them only on acknowledgement. Entries left pending by a
// crashed consumer are moved back to the main list when the next
// session opens, which yields at-least-once delivery.
type RedisQueue struct {
	client      *redis.Client
	name        string
	pollTimeout time.Duration
	logger      Logger
}

// NewRedisQueue creates a queue on the named Redis list. An empty name
// uses DefaultQueueName.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &RedisQueue{
		client:      client,
		name:        name,
		pollTimeout: defaultPollTimeout,
		logger:      &NoOpLogger{},
	}
}

// WithLogger sets the logger.
func (q *RedisQueue) WithLogger(logger Logger) *RedisQueue {
	q.logger = logger
	return q
}

// WithPollTimeout overrides how long Next blocks on an empty queue.
func (q *RedisQueue) WithPollTimeout(timeout time.Duration) *RedisQueue {
	q.pollTimeout = timeout
	return q
}

func (q *RedisQueue) pendingKey() string {
	return q.name + ":pending"
}

// Put enqueues one payload.
func (q *RedisQueue) Put(ctx context.Context, body []byte) error {
	envelope, err := json.Marshal(queueEnvelope{
		ID:   uuid.NewString(),
		Body: body,
	})
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.name, envelope).Err(); err != nil {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"queue": q.name,
			"error": err.Error(),
		})
	}
	return nil
}

// Open starts a session. Entries a previous consumer left pending are
// requeued first so they get redelivered.
func (q *RedisQueue) Open(ctx context.Context) (QueueSession, error) {
	for {
		err := q.client.LMove(ctx, q.pendingKey(), q.name, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, WithContext(ErrBackendUnavailable, map[string]interface{}{
				"queue": q.name,
				"error": err.Error(),
			})
		}
	}
	return &redisSession{
		queue: q,
		raw:   make(map[string]string),
	}, nil
}

// redisSession tracks the raw envelope of each in-flight delivery so
// Ack can LREM the exact pending entry.
type redisSession struct {
	queue *RedisQueue

	mu  sync.Mutex
	raw map[string]string
}

func (s *redisSession) Next(ctx context.Context) (*Message, error) {
	raw, err := s.queue.client.BLMove(ctx, s.queue.name, s.queue.pendingKey(),
		"RIGHT", "LEFT", s.queue.pollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, WithContext(ErrTimeout, map[string]interface{}{
			"queue": s.queue.name,
		})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WithContext(ErrBackendUnavailable, map[string]interface{}{
			"queue": s.queue.name,
			"error": err.Error(),
		})
	}

	msg := &Message{}
	var envelope queueEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.ID != "" {
		msg.ID = envelope.ID
		msg.Body = envelope.Body
	} else {
		// Not an envelope we wrote. Hand it over anyway so the
		// consumer can discard it as malformed; it still needs an id
		// for acknowledgement.
		msg.ID = uuid.NewString()
		msg.Body = []byte(raw)
	}

	s.mu.Lock()
	s.raw[msg.ID] = raw
	s.mu.Unlock()
	return msg, nil
}

func (s *redisSession) Ack(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	raw, ok := s.raw[msg.ID]
	delete(s.raw, msg.ID)
	s.mu.Unlock()
	if !ok {
		s.queue.logger.Warn("acknowledging unknown message", "message_id", msg.ID)
		return nil
	}

	if err := s.queue.client.LRem(ctx, s.queue.pendingKey(), 1, raw).Err(); err != nil {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"queue": s.queue.name,
			"error": err.Error(),
		})
	}
	return nil
}

func (s *redisSession) Close() error {
	return nil
}
