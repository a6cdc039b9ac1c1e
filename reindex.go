package searchsync

import "context"

// DefaultReindexBatch is the bulk batch size used when none is given.
const DefaultReindexBatch = 100

// Reindex rebuilds documents for every entity of the given types by
// loading each entity from the store and bulk-updating in batches.
// An empty types slice reindexes every registered type; batchSize <= 0
// uses DefaultReindexBatch. Entities that vanish between the key scan
// and the load are skipped, and entities that no longer qualify get
// their documents removed, same as on the live update path. Returns
// how many entities were indexed.
func (m *Maintainer) Reindex(ctx context.Context, types []EntityType, batchSize int, refresh bool) (int, error) {
	if len(types) == 0 {
		types = m.registry.Types()
	}
	if batchSize <= 0 {
		batchSize = DefaultReindexBatch
	}

	indexed := 0
	for _, t := range types {
		idx, err := m.registry.Index(t)
		if err != nil {
			return indexed, err
		}
		pks, err := m.store.ListPKs(ctx, t)
		if err != nil {
			return indexed, err
		}
		m.logger.Info("reindexing type",
			"entity_type", t.TypeKey(),
			"entities", len(pks),
		)

		batch := make([]Entity, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := m.backend.Update(ctx, batch, refresh); err != nil {
				return err
			}
			indexed += len(batch)
			batch = batch[:0]
			return nil
		}

		for _, pk := range pks {
			id := Identifier{Namespace: t.Namespace, Name: t.Name, PK: pk}
			e, err := m.store.Get(ctx, id)
			if err != nil {
				if IsNotFound(err) {
					continue
				}
				return indexed, err
			}
			if !idx.ShouldIndex(e) {
				if err := m.backend.Remove(ctx, id, refresh); err != nil {
					return indexed, err
				}
				continue
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return indexed, err
				}
			}
		}
		if err := flush(); err != nil {
			return indexed, err
		}
	}
	return indexed, nil
}
