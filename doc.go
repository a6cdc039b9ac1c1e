// Package searchsync keeps search-engine indexes synchronized with an
// application's entity store, treating the index as a disposable
// derived view that can always be rebuilt from the system of record.
//
// # Overview
//
// searchsync captures entity changes, routes them through a durable
// queue (or inline, per call-scoped options), and applies them to the
// search engine with schema management on top. It provides:
//
//   - Declarative per-type index definitions with typed field mappings
//   - A change router with fan-out from related entities to the
//     documents that embed them
//   - A Redis-backed durable queue with at-least-once delivery and a
//     consumer whose acknowledgement policy is driven by error class
//   - Inline fallback when the queue is unreachable, behind a circuit
//     breaker
//   - Schema setup with mapping-conflict detection and an operator
//     check/report workflow
//   - Maintenance operations: full reindex and leftover cleanup
//   - Full observability (Prometheus metrics + structured logging)
//
// # Quick Start
//
// Define an index for an entity type:
//
//	type PostIndex struct {
//	    searchsync.BaseIndex
//	}
//
//	func (PostIndex) EntityType() searchsync.EntityType {
//	    return searchsync.EntityType{Namespace: "blog", Name: "post"}
//	}
//
//	func (PostIndex) FieldDefinitions() []searchsync.FieldDefinition {
//	    return []searchsync.FieldDefinition{
//	        {Name: "content", Type: searchsync.TextType, Document: true,
//	            Prepare: func(ctx context.Context, e searchsync.Entity) (interface{}, error) {
//	                return e.(*Post).Body, nil
//	            }},
//	        {Name: "published", Type: searchsync.BooleanType,
//	            Prepare: func(ctx context.Context, e searchsync.Entity) (interface{}, error) {
//	                return e.(*Post).Published, nil
//	            }},
//	    }
//	}
//
// Wire the components and route changes:
//
//	registry := searchsync.NewRegistry("search")
//	registry.Register(PostIndex{})
//
//	client, _ := searchsync.NewElasticClient("http://localhost:9200")
//	backend := searchsync.NewBackend(registry, client)
//	coordinator := searchsync.NewCoordinator(registry, backend, store)
//	queue := searchsync.NewRedisQueue(redis.NewClient(searchsync.RedisOptions()), "")
//	dispatcher := searchsync.NewDispatcher(queue, coordinator)
//
//	router := searchsync.NewRouter(registry, coordinator, dispatcher)
//	router.Init()
//
//	// From persistence hooks:
//	router.EntitySaved(ctx, post)
//
// Run updates inline for one scope, e.g. in tests:
//
//	ctx = searchsync.WithOptions(ctx, searchsync.Async(false))
//	router.EntitySaved(ctx, post)
//
// # Core Concepts
//
// Registry: maps entity types to index definitions and owns the
// index-group topology (which remote index holds which types).
//
// Backend: the only component that talks to the search engine, via the
// SearchClient interface. Owns setup, bulk updates, removal, clearing
// and search.
//
// Coordinator: decides upsert-versus-delete per entity, re-evaluating
// the inclusion predicate on current store state. Both the inline path
// and the queue consumer converge here.
//
// Router: the change-capture entry point, honoring context-scoped
// options and related-entity fan-out.
//
// Consumer: drains the queue with differentiated acknowledgement;
// transient failures get one retry after a store connection reset,
// and only still-failing messages stay queued for redelivery.
package searchsync
