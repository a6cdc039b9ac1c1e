package searchsync

import "context"

// Coordinator executes index updates against the backend, deciding per
// call whether an entity belongs in the index at all. Both the inline
// path and the queue consumer end here, so the upsert-or-delete
// decision lives in exactly one place.
type Coordinator struct {
	registry *Registry
	backend  *Backend
	store    EntityStore
	logger   Logger
	metrics  Metrics
}

// NewCoordinator creates a coordinator over a registry, backend and
// entity store.
func NewCoordinator(registry *Registry, backend *Backend, store EntityStore) *Coordinator {
	return &Coordinator{
		registry: registry,
		backend:  backend,
		store:    store,
		logger:   &NoOpLogger{},
		metrics:  &NoOpMetrics{},
	}
}

// WithLogger sets the logger.
func (c *Coordinator) WithLogger(logger Logger) *Coordinator {
	c.logger = logger
	return c
}

// WithMetrics sets the metrics collector.
func (c *Coordinator) WithMetrics(metrics Metrics) *Coordinator {
	c.metrics = metrics
	return c
}

// Apply executes one update request. Unknown actions are invalid
// messages, which consumers treat as malformed and discard.
func (c *Coordinator) Apply(ctx context.Context, action Action, id Identifier) error {
	switch action {
	case ActionUpdate:
		return c.UpdateEntity(ctx, id, false)
	case ActionRemove:
		return c.RemoveEntity(ctx, id, false)
	default:
		return WithContext(ErrInvalidMessage, map[string]interface{}{
			"action": string(action),
		})
	}
}

// UpdateEntity reloads the entity and upserts its document. The
// inclusion predicate is re-evaluated here, on current entity state:
// an entity that has vanished from the store, or that no longer
// qualifies for the index, gets its document deleted instead. A
// single queued "update" can therefore legitimately end in a delete.
func (c *Coordinator) UpdateEntity(ctx context.Context, id Identifier, refresh bool) error {
	e, err := c.store.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			c.logger.Info("entity gone from store, removing its document",
				"identifier", id.String(),
			)
			return c.RemoveEntity(ctx, id, refresh)
		}
		return err
	}
	return c.UpdateNow(ctx, e, refresh)
}

// UpdateNow upserts the given entity's document without a store round
// trip. Used by the inline path, which already holds the fresh entity.
func (c *Coordinator) UpdateNow(ctx context.Context, e Entity, refresh bool) error {
	id := e.Identifier()
	idx, err := c.registry.IndexFor(id)
	if err != nil {
		return err
	}

	if !idx.ShouldIndex(e) {
		c.metrics.Increment(MetricIndexSkipped, "entity_type", id.Type().TypeKey())
		return c.RemoveEntity(ctx, id, refresh)
	}

	if err := c.backend.Update(ctx, []Entity{e}, refresh); err != nil {
		return err
	}
	c.metrics.Increment(MetricIndexUpdate, "entity_type", id.Type().TypeKey())
	return nil
}

// RemoveEntity deletes the entity's document.
func (c *Coordinator) RemoveEntity(ctx context.Context, id Identifier, refresh bool) error {
	if err := c.backend.Remove(ctx, id, refresh); err != nil {
		return err
	}
	c.metrics.Increment(MetricIndexRemove, "entity_type", id.Type().TypeKey())
	return nil
}
