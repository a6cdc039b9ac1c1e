package searchsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SearchClient is the wire-protocol collaborator for the search
// engine. Implementations own request/response shapes and transport
// errors; everything above this interface is engine-agnostic.
//
// CreateIndex must be create-if-absent. Delete must tolerate deleting
// a document that is already gone.
type SearchClient interface {
	CreateIndex(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	PutMapping(ctx context.Context, index string, schema Schema) error
	GetMapping(ctx context.Context, index string) (Schema, error)
	BulkIndex(ctx context.Context, index string, docs []Document) (*BulkResult, error)
	Delete(ctx context.Context, index, docID string) error
	DeleteByQuery(ctx context.Context, index, query string) error
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	MoreLikeThis(ctx context.Context, index, docID, field string, from, size int) (*SearchResponse, error)
	Refresh(ctx context.Context, index string) error
}

// BulkResult reports per-item outcomes of a bulk write. The engine can
// return a successful transport status while individual items failed;
// callers must inspect Items.
type BulkResult struct {
	Items []BulkItem
}

// BulkItem is one document's outcome within a bulk write.
type BulkItem struct {
	ID    string
	Error string // empty on success
}

// SearchRequest is an engine-agnostic search call.
type SearchRequest struct {
	Query   string
	Indexes []string
	From    int
	Size    int // 0 means engine default
}

// SearchResponse holds hits in an engine-agnostic shape.
type SearchResponse struct {
	Hits    int64
	Results []Hit
}

// Hit is one search result.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]interface{}
}

// EmptyResponse is returned without contacting the engine, e.g. for an
// empty query string.
func EmptyResponse() *SearchResponse {
	return &SearchResponse{}
}

// SearchOptions narrow and page a search.
type SearchOptions struct {
	// Types restricts the search to these entity types' indexes. An
	// explicit request that resolves to no known index is an error:
	// silently searching nothing would hide a configuration bug.
	Types []EntityType

	// Start and End page the result window; End is exclusive and zero
	// means "engine default size".
	Start int
	End   int
}

// Backend is the sole component that talks to the search engine. It
// owns schema setup with conflict detection, bulk updates with
// per-entity failure isolation, removals, clearing, and search.
type Backend struct {
	registry *Registry
	client   SearchClient
	logger   Logger
	metrics  Metrics

	// silentFail downgrades most remote failures to logged-and-
	// swallowed. Schema conflicts stay loud while debug is set, even
	// with silentFail: conflicts must never pass unnoticed during
	// development.
	silentFail bool
	debug      bool

	mu            sync.Mutex
	setupDone     bool
	contentFields map[string]string // index name -> document field
}

// NewBackend creates a backend over a registry and a search client.
func NewBackend(registry *Registry, client SearchClient) *Backend {
	return &Backend{
		registry:      registry,
		client:        client,
		logger:        &NoOpLogger{},
		metrics:       &NoOpMetrics{},
		contentFields: make(map[string]string),
	}
}

// WithLogger sets the logger.
func (b *Backend) WithLogger(logger Logger) *Backend {
	b.logger = logger
	return b
}

// WithMetrics sets the metrics collector.
func (b *Backend) WithMetrics(metrics Metrics) *Backend {
	b.metrics = metrics
	return b
}

// WithSilentFailure makes remote failures log instead of propagate.
// Intended for deployments that tolerate a stale index over a failing
// request path.
func (b *Backend) WithSilentFailure(silent bool) *Backend {
	b.silentFail = silent
	return b
}

// WithDebug keeps schema conflicts loud regardless of silent failure.
func (b *Backend) WithDebug(debug bool) *Backend {
	b.debug = debug
	return b
}

// Setup builds every index group's schema and pushes it to the engine.
// It is idempotent and single-flight per process: once it has
// completed, later calls return immediately. Concurrent first callers
// may race to set up; that is acceptable because index creation and
// mapping pushes are idempotent against the engine.
//
// On a push failure the deployed mapping is fetched and checked for
// conflicts, so that a cryptic remote error becomes an actionable
// "field X changed" one. Without a conflict the original error
// propagates.
func (b *Backend) Setup(ctx context.Context) error {
	b.mu.Lock()
	if b.setupDone {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	groups := b.registry.IndexGroups()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, indexName := range names {
		if err := b.setupGroup(ctx, indexName, groups[indexName]); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.setupDone = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) setupGroup(ctx context.Context, indexName string, group []SearchIndex) error {
	contentField, schema, err := b.registry.GroupSchema(group)
	if err != nil {
		// A broken field definition is a configuration bug, not a
		// remote hiccup; it propagates even in silent mode.
		return err
	}

	b.mu.Lock()
	b.contentFields[indexName] = contentField
	b.mu.Unlock()

	err = b.client.CreateIndex(ctx, indexName)
	if err == nil {
		err = b.client.PutMapping(ctx, indexName, schema)
	}
	if err == nil {
		return nil
	}

	// The push failed. Fetch whatever the engine currently reports and
	// look for mapping conflicts before surfacing anything.
	existing, getErr := b.client.GetMapping(ctx, indexName)
	if getErr != nil && !IsNotFound(getErr) {
		b.logger.Warn("could not fetch existing mapping",
			"index", indexName,
			"error", getErr,
		)
	}

	if conflicts := FindConflicts(existing, schema); len(conflicts) > 0 {
		field := conflicts[0]
		before := existing[field]
		after := schema[field]
		conflictErr := &MappingConflictError{
			Index:  indexName,
			Field:  field,
			Before: &before,
			After:  &after,
		}
		b.metrics.Increment(MetricSetupConflicts)
		if b.debug || !b.silentFail {
			return conflictErr
		}
		b.logger.Error("schema setup failed with a mapping conflict",
			"index", indexName,
			"field", field,
			"error", conflictErr,
		)
		return nil
	}

	if !b.silentFail {
		return fmt.Errorf("setting up index %s: %w", indexName, err)
	}
	b.logger.Error("schema setup failed",
		"index", indexName,
		"error", err,
	)
	return nil
}

// ensureSetup runs Setup lazily before write and search operations.
func (b *Backend) ensureSetup(ctx context.Context) error {
	b.mu.Lock()
	done := b.setupDone
	b.mu.Unlock()
	if done {
		return nil
	}
	return b.Setup(ctx)
}

// Update prepares and bulk-writes documents for the given entities.
// One entity's preparation failure is logged with its identifier only
// (never the raw object, to avoid encoding hazards in log handling)
// and skipped; it does not abort the batch. refresh makes the writes
// immediately visible to subsequent reads at the cost of throughput.
func (b *Backend) Update(ctx context.Context, entities []Entity, refresh bool) error {
	if len(entities) == 0 {
		return nil
	}

	if err := b.ensureSetup(ctx); err != nil {
		if b.silentFail {
			b.logger.Error("failed to add documents to the search index", "error", err)
			return nil
		}
		return err
	}

	// Group documents per remote index.
	byIndex := make(map[string][]Document)
	for _, e := range entities {
		id := e.Identifier()
		indexName, err := b.registry.IndexName(id.Type())
		if err != nil {
			return err
		}

		doc, err := b.registry.BuildDocument(ctx, e)
		if err != nil {
			b.logger.Warn("failed to prepare entity for indexing",
				"identifier", id.String(),
				"error", err,
			)
			b.metrics.Increment(MetricIndexErrors, "entity_type", id.Type().TypeKey())
			continue
		}
		byIndex[indexName] = append(byIndex[indexName], doc)
	}

	for indexName, docs := range byIndex {
		if err := b.bulkWrite(ctx, indexName, docs, refresh); err != nil {
			if b.silentFail {
				b.logger.Error("failed to add documents to the search index",
					"index", indexName,
					"error", err,
				)
				continue
			}
			return err
		}
	}
	return nil
}

func (b *Backend) bulkWrite(ctx context.Context, indexName string, docs []Document, refresh bool) error {
	started := time.Now()
	result, err := b.client.BulkIndex(ctx, indexName, docs)
	b.metrics.Timing(MetricBulkDuration, time.Since(started), "index", indexName)
	b.metrics.Histogram(MetricBulkSize, float64(len(docs)), "index", indexName)
	if err != nil {
		return err
	}
	if err := checkBulkResult(result); err != nil {
		return err
	}
	if refresh {
		return b.client.Refresh(ctx, indexName)
	}
	return nil
}

// checkBulkResult promotes item-level errors to a call failure. The
// engine reports bulk partial failures inside an ostensibly successful
// response; treating that as success would silently drop documents.
func checkBulkResult(result *BulkResult) error {
	if result == nil {
		return nil
	}
	var failures []string
	for _, item := range result.Items {
		if item.Error != "" {
			failures = append(failures, item.ID+": "+item.Error)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return WithContext(ErrBulkErrors, map[string]interface{}{
		"errors": strings.Join(failures, "; "),
		"count":  len(failures),
	})
}

// Remove deletes one document by identifier. Failures are logged and
// swallowed under silent failure, propagated otherwise.
func (b *Backend) Remove(ctx context.Context, id Identifier, refresh bool) error {
	if err := b.ensureSetup(ctx); err != nil {
		if b.silentFail {
			b.logger.Error("failed to remove document from the search index",
				"identifier", id.String(),
				"error", err,
			)
			return nil
		}
		return err
	}

	indexName, err := b.registry.IndexName(id.Type())
	if err != nil {
		return err
	}

	err = b.client.Delete(ctx, indexName, id.String())
	if err == nil && refresh {
		err = b.client.Refresh(ctx, indexName)
	}
	if err != nil {
		if b.silentFail {
			b.logger.Error("failed to remove document from the search index",
				"identifier", id.String(),
				"error", err,
			)
			return nil
		}
		return err
	}
	return nil
}

// Clear deletes entire indexes when no types are given, or issues
// delete-by-query against the type discriminator for the given types.
// It needs only index-group topology, never a completed Setup: the
// deployed mappings could be arbitrarily different from the current
// definitions and clearing must still work.
func (b *Backend) Clear(ctx context.Context, types []EntityType, refresh bool) error {
	if len(types) == 0 {
		groups := b.registry.IndexGroups()
		for indexName := range groups {
			if err := b.client.DeleteIndex(ctx, indexName); err != nil {
				if b.silentFail {
					b.logger.Error("failed to clear search index", "index", indexName, "error", err)
					continue
				}
				return err
			}
		}
		return nil
	}

	queries := make(map[string][]string)
	for _, t := range types {
		indexName, err := b.registry.IndexName(t)
		if err != nil {
			return err
		}
		queries[indexName] = append(queries[indexName], TypeField+":"+t.TypeKey())
	}

	for indexName, terms := range queries {
		query := strings.Join(terms, " OR ")
		err := b.client.DeleteByQuery(ctx, indexName, query)
		if err == nil && refresh {
			err = b.client.Refresh(ctx, indexName)
		}
		if err != nil {
			if b.silentFail {
				b.logger.Error("failed to clear search index of types",
					"index", indexName,
					"query", query,
					"error", err,
				)
				continue
			}
			return err
		}
	}
	return nil
}

// Search executes a query string. An empty query returns an empty
// result immediately without contacting the engine: it saves a round
// trip and avoids a confusing match-everything default.
func (b *Backend) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	if query == "" {
		return EmptyResponse(), nil
	}

	if err := b.ensureSetup(ctx); err != nil {
		if b.silentFail {
			b.logger.Error("search setup failed", "error", err)
			return EmptyResponse(), nil
		}
		return nil, err
	}

	indexes, err := b.resolveIndexes(opts.Types)
	if err != nil {
		return nil, err
	}

	req := SearchRequest{
		Query:   query,
		Indexes: indexes,
		From:    opts.Start,
	}
	if opts.End > opts.Start {
		req.Size = opts.End - opts.Start
	}

	started := time.Now()
	resp, err := b.client.Search(ctx, req)
	b.metrics.Timing(MetricSearchDuration, time.Since(started))
	if err != nil {
		b.metrics.Increment(MetricSearchErrors)
		if b.silentFail {
			b.logger.Error("search failed", "query", query, "error", err)
			return EmptyResponse(), nil
		}
		return nil, err
	}
	return resp, nil
}

// resolveIndexes maps requested types to index names, or all groups
// when no types were requested.
func (b *Backend) resolveIndexes(types []EntityType) ([]string, error) {
	if len(types) == 0 {
		groups := b.registry.IndexGroups()
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}

	seen := make(map[string]struct{})
	var names []string
	for _, t := range types {
		name, err := b.registry.IndexName(t)
		if err != nil {
			b.logger.Warn("no search index registered for type", "entity_type", t.TypeKey())
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, WithContext(ErrUnknownEntityType, map[string]interface{}{
			"reason": "none of the requested types resolve to a known index",
		})
	}
	sort.Strings(names)
	return names, nil
}

// MoreLikeThis finds documents similar to the given entity's document
// field. Results are limited to the entity's own index group.
func (b *Backend) MoreLikeThis(ctx context.Context, e Entity, opts SearchOptions) (*SearchResponse, error) {
	if err := b.ensureSetup(ctx); err != nil {
		if b.silentFail {
			b.logger.Error("more-like-this setup failed", "error", err)
			return EmptyResponse(), nil
		}
		return nil, err
	}

	id := e.Identifier()
	indexName, err := b.registry.IndexName(id.Type())
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	field := b.contentFields[indexName]
	b.mu.Unlock()
	if field == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"index":  indexName,
			"reason": "no document field known for index",
		})
	}

	size := 0
	if opts.End > opts.Start {
		size = opts.End - opts.Start
	}

	resp, err := b.client.MoreLikeThis(ctx, indexName, id.String(), field, opts.Start, size)
	if err != nil {
		if b.silentFail {
			b.logger.Error("more-like-this failed", "identifier", id.String(), "error", err)
			return EmptyResponse(), nil
		}
		return nil, err
	}
	return resp, nil
}

// IndexedIDs pages through every document of one type and returns the
// identifiers present in the index. Used by leftover cleanup.
func (b *Backend) IndexedIDs(ctx context.Context, t EntityType) ([]Identifier, error) {
	indexName, err := b.registry.IndexName(t)
	if err != nil {
		return nil, err
	}

	const page = 1000
	var ids []Identifier
	for from := 0; ; from += page {
		resp, err := b.client.Search(ctx, SearchRequest{
			Query:   TypeField + ":" + t.TypeKey(),
			Indexes: []string{indexName},
			From:    from,
			Size:    page,
		})
		if err != nil {
			return nil, err
		}
		for _, hit := range resp.Results {
			id, err := ParseIdentifier(hit.ID)
			if err != nil {
				b.logger.Warn("indexed document with unparseable id", "doc_id", hit.ID)
				continue
			}
			ids = append(ids, id)
		}
		if len(resp.Results) < page {
			return ids, nil
		}
	}
}
