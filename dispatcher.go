package searchsync

import (
	"context"
	"encoding/json"
	"time"
)

// Dispatcher is the producing side of the queue. It serializes update
// requests and enqueues them; when the queue is unreachable it falls
// back to executing the update inline, trading request latency for
// never losing the change.
type Dispatcher struct {
	queue       Queue
	coordinator *Coordinator
	breaker     *CircuitBreaker
	logger      Logger
	metrics     Metrics
}

// NewDispatcher creates a dispatcher. The coordinator is the inline
// fallback when enqueueing fails.
func NewDispatcher(queue Queue, coordinator *Coordinator) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		coordinator: coordinator,
		breaker:     NewCircuitBreaker(5, 30*time.Second),
		logger:      &NoOpLogger{},
		metrics:     &NoOpMetrics{},
	}
}

// WithLogger sets the logger.
func (d *Dispatcher) WithLogger(logger Logger) *Dispatcher {
	d.logger = logger
	return d
}

// WithMetrics sets the metrics collector.
func (d *Dispatcher) WithMetrics(metrics Metrics) *Dispatcher {
	d.metrics = metrics
	return d
}

// WithCircuitBreaker replaces the default breaker guarding enqueues.
func (d *Dispatcher) WithCircuitBreaker(cb *CircuitBreaker) *Dispatcher {
	d.breaker = cb
	return d
}

// Dispatch enqueues one update request. On enqueue failure the request
// runs inline instead; the returned error is then the inline outcome,
// so a change is only ever reported lost when both paths failed.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, id Identifier) error {
	body, err := json.Marshal(UpdateRequest{
		Identifier: id.String(),
		Remove:     action == ActionRemove,
	})
	if err != nil {
		return err
	}

	err = d.breaker.Execute(ctx, func() error {
		return d.queue.Put(ctx, body)
	})
	if err == nil {
		d.metrics.Increment(MetricQueueEnqueued, "action", string(action))
		return nil
	}

	d.logger.Warn("enqueue failed, falling back to inline index update",
		"action", string(action),
		"identifier", id.String(),
		"error", err,
	)
	d.metrics.Increment(MetricQueueFallback, "action", string(action))
	return d.coordinator.Apply(ctx, action, id)
}
