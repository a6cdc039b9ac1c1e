package searchsync

import "context"

// Maintainer runs the offline maintenance operations: leftover
// cleanup and full reindexing. These are operator tools, not part of
// the change-capture path.
type Maintainer struct {
	registry *Registry
	backend  *Backend
	store    EntityStore
	logger   Logger
	metrics  Metrics
}

// NewMaintainer creates a maintainer.
func NewMaintainer(registry *Registry, backend *Backend, store EntityStore) *Maintainer {
	return &Maintainer{
		registry: registry,
		backend:  backend,
		store:    store,
		logger:   &NoOpLogger{},
		metrics:  &NoOpMetrics{},
	}
}

// WithLogger sets the logger.
func (m *Maintainer) WithLogger(logger Logger) *Maintainer {
	m.logger = logger
	return m
}

// WithMetrics sets the metrics collector.
func (m *Maintainer) WithMetrics(metrics Metrics) *Maintainer {
	m.metrics = metrics
	return m
}

// CleanLeftovers deletes documents whose entities no longer exist in
// the store. Deletes that never reached the index (lost messages,
// crashed consumers) accumulate as leftovers; this reconciles them.
// An empty types slice cleans every registered type. Returns how many
// documents were removed.
func (m *Maintainer) CleanLeftovers(ctx context.Context, types []EntityType, refresh bool) (int, error) {
	if len(types) == 0 {
		types = m.registry.Types()
	}

	removed := 0
	for _, t := range types {
		indexed, err := m.backend.IndexedIDs(ctx, t)
		if err != nil {
			return removed, err
		}
		pks, err := m.store.ListPKs(ctx, t)
		if err != nil {
			return removed, err
		}

		alive := make(map[string]struct{}, len(pks))
		for _, pk := range pks {
			alive[pk] = struct{}{}
		}

		for _, id := range indexed {
			if _, ok := alive[id.PK]; ok {
				continue
			}
			m.logger.Info("removing leftover document", "identifier", id.String())
			if err := m.backend.Remove(ctx, id, refresh); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
