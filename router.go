package searchsync

import (
	"context"
	"errors"
	"sync"
)

// routerState tracks one-time initialization.
type routerState int

const (
	routerPending routerState = iota
	routerReady
)

// fanoutRule routes changes of a related type to one index's entities.
type fanoutRule struct {
	indexType EntityType
	resolve   func(ctx context.Context, related Entity) ([]Entity, error)
}

// Router is the change-capture entry point. Host applications call
// EntitySaved and EntityDeleted from their persistence hooks; the
// router consults the context-scoped options, fans changes of related
// entities out to the indexes that declared them, and hands each
// resulting update to the queue or the inline path.
type Router struct {
	registry    *Registry
	coordinator *Coordinator
	dispatcher  *Dispatcher
	logger      Logger
	metrics     Metrics

	mu     sync.Mutex
	state  routerState
	fanout map[EntityType][]fanoutRule
}

// NewRouter creates a router. Call Init once after all indexes are
// registered and before routing any events.
func NewRouter(registry *Registry, coordinator *Coordinator, dispatcher *Dispatcher) *Router {
	return &Router{
		registry:    registry,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		logger:      &NoOpLogger{},
		metrics:     &NoOpMetrics{},
	}
}

// WithLogger sets the logger.
func (r *Router) WithLogger(logger Logger) *Router {
	r.logger = logger
	return r
}

// WithMetrics sets the metrics collector.
func (r *Router) WithMetrics(metrics Metrics) *Router {
	r.metrics = metrics
	return r
}

// Init builds the fan-out table from the registered indexes' related
// sources. It is idempotent: repeated calls after the first return
// immediately, so process setup paths that run more than once never
// double-register a rule. At most one rule exists per related-type and
// index-type pair; duplicates within one index are dropped with a
// warning.
func (r *Router) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == routerReady {
		return nil
	}

	fanout := make(map[EntityType][]fanoutRule)
	seen := make(map[[2]string]struct{})
	for _, t := range r.registry.Types() {
		idx, err := r.registry.Index(t)
		if err != nil {
			return err
		}
		for _, src := range idx.RelatedSources() {
			if src.Resolve == nil {
				return WithContext(ErrInvalidConfig, map[string]interface{}{
					"entity_type":  t.TypeKey(),
					"related_type": src.Type.TypeKey(),
					"reason":       "related source without a resolver",
				})
			}
			pair := [2]string{src.Type.TypeKey(), t.TypeKey()}
			if _, dup := seen[pair]; dup {
				r.logger.Warn("duplicate related source dropped",
					"entity_type", t.TypeKey(),
					"related_type", src.Type.TypeKey(),
				)
				continue
			}
			seen[pair] = struct{}{}
			fanout[src.Type] = append(fanout[src.Type], fanoutRule{
				indexType: t,
				resolve:   src.Resolve,
			})
		}
	}

	r.fanout = fanout
	r.state = routerReady
	return nil
}

// EntitySaved routes a save event: the entity's own document is
// updated (or deleted, if it no longer qualifies) and every index that
// declared this type as a related source refreshes its affected
// documents.
func (r *Router) EntitySaved(ctx context.Context, e Entity) error {
	return r.route(ctx, e, ActionUpdate)
}

// EntityDeleted routes a delete event: the entity's own document is
// removed. Fan-out still runs, because documents embedding the deleted
// entity must be rebuilt without it. The identifier is captured before
// any dispatch, so callers may pass the entity right after deleting it.
func (r *Router) EntityDeleted(ctx context.Context, e Entity) error {
	return r.route(ctx, e, ActionRemove)
}

// EntityDeletedByID routes a delete event for hosts that only kept the
// identifier. Without the entity no fan-out can be resolved, so only
// the entity's own document is removed; hosts that still hold the
// deleted entity should prefer EntityDeleted.
func (r *Router) EntityDeletedByID(ctx context.Context, id Identifier) error {
	r.mu.Lock()
	ready := r.state == routerReady
	r.mu.Unlock()
	if !ready {
		return ErrNotInitialized
	}

	opts := OptionsFrom(ctx)
	if opts.Disabled {
		return nil
	}
	if _, err := r.registry.Index(id.Type()); err != nil {
		return nil
	}
	return r.dispatch(ctx, opts, ActionRemove, id, nil)
}

func (r *Router) route(ctx context.Context, e Entity, action Action) error {
	r.mu.Lock()
	ready := r.state == routerReady
	r.mu.Unlock()
	if !ready {
		return ErrNotInitialized
	}

	opts := OptionsFrom(ctx)
	if opts.Disabled {
		return nil
	}

	id := e.Identifier()
	var errs []error

	// The entity's own index, when it has one. A type can participate
	// purely as a related source and never be indexed itself.
	if _, err := r.registry.Index(id.Type()); err == nil {
		if err := r.dispatch(ctx, opts, action, id, e); err != nil {
			errs = append(errs, err)
		}
	}

	// Fan-out. A broken resolver logs and moves on so one bad rule
	// cannot block the save path for the others.
	r.mu.Lock()
	rules := r.fanout[id.Type()]
	r.mu.Unlock()

	for _, rule := range rules {
		targets, err := rule.resolve(ctx, e)
		if err != nil {
			r.logger.Error("related-source resolver failed",
				"identifier", identifierOf(e),
				"index_type", rule.indexType.TypeKey(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		for _, target := range targets {
			r.metrics.Increment(MetricFanout,
				"related_type", id.Type().TypeKey(),
				"index_type", rule.indexType.TypeKey(),
			)
			// Fan-out always updates: the related entity changed or
			// vanished, but the indexed entity itself still exists and
			// its document must be rebuilt.
			if err := r.dispatch(ctx, opts, ActionUpdate, target.Identifier(), target); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// dispatch sends one update through the queue or runs it inline,
// after unit-of-work deduplication. Re-dispatching an identifier a
// unit of work has already dispatched is a no-op; redundant fan-out
// is safe because the consumer rebuilds from current store state.
func (r *Router) dispatch(ctx context.Context, opts Options, action Action, id Identifier, e Entity) error {
	key := string(action) + ":" + id.String()
	if !firstDispatch(ctx, key) {
		return nil
	}

	if opts.Async {
		return r.dispatcher.Dispatch(ctx, action, id)
	}

	switch action {
	case ActionUpdate:
		return r.coordinator.UpdateNow(ctx, e, false)
	case ActionRemove:
		return r.coordinator.RemoveEntity(ctx, id, false)
	}
	return nil
}
