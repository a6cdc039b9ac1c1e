package searchsync

import (
	"context"
	"encoding/json"
	"testing"
)

type routerHarness struct {
	router *Router
	queue  *fakeQueue
	client *fakeSearchClient
	store  *MemoryStore
}

// newRouterHarness wires a registry with a post index that treats
// authors as a related source: an author change refreshes every post
// currently in the store.
func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()

	store := NewMemoryStore()
	idx := newPostIndex()
	idx.related = []RelatedSource{
		{
			Type: authorType,
			Resolve: func(ctx context.Context, related Entity) ([]Entity, error) {
				pks, err := store.ListPKs(ctx, postType)
				if err != nil {
					return nil, err
				}
				var posts []Entity
				for _, pk := range pks {
					e, err := store.Get(ctx, Identifier{Namespace: "blog", Name: "post", PK: pk})
					if err != nil {
						continue
					}
					posts = append(posts, e)
				}
				return posts, nil
			},
		},
	}

	registry := NewRegistry("search")
	if err := registry.Register(idx); err != nil {
		t.Fatal(err)
	}

	client := newFakeSearchClient()
	backend := NewBackend(registry, client)
	coordinator := NewCoordinator(registry, backend, store)
	queue := &fakeQueue{}
	dispatcher := NewDispatcher(queue, coordinator)

	router := NewRouter(registry, coordinator, dispatcher)
	if err := router.Init(); err != nil {
		t.Fatal(err)
	}

	return &routerHarness{router: router, queue: queue, client: client, store: store}
}

func decodeRequests(t *testing.T, queue *fakeQueue) []UpdateRequest {
	t.Helper()
	var reqs []UpdateRequest
	for _, body := range queue.bodies {
		var req UpdateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad queue payload: %v", err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func TestRouterRequiresInit(t *testing.T) {
	registry := NewRegistry("search")
	router := NewRouter(registry, nil, nil)

	if err := router.EntitySaved(context.Background(), newPost("1", "x")); err != ErrNotInitialized {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRouterAsyncEnqueues(t *testing.T) {
	h := newRouterHarness(t)
	post := newPost("1", "hello")
	h.store.Put(post)

	if err := h.router.EntitySaved(context.Background(), post); err != nil {
		t.Fatal(err)
	}

	reqs := decodeRequests(t, h.queue)
	if len(reqs) != 1 {
		t.Fatalf("expected one queued request, got %d", len(reqs))
	}
	if reqs[0].Remove || reqs[0].Identifier != "blog.post.1" {
		t.Errorf("unexpected request: %+v", reqs[0])
	}
	if _, ok := h.client.document("search-blog-post", "blog.post.1"); ok {
		t.Error("async save must not write to the index inline")
	}
}

func TestRouterSyncRunsInline(t *testing.T) {
	h := newRouterHarness(t)
	post := newPost("1", "hello")
	h.store.Put(post)

	ctx := WithOptions(context.Background(), Async(false))
	if err := h.router.EntitySaved(ctx, post); err != nil {
		t.Fatal(err)
	}

	if h.queue.size() != 0 {
		t.Error("sync save must not enqueue")
	}
	if _, ok := h.client.document("search-blog-post", "blog.post.1"); !ok {
		t.Error("sync save did not index the entity")
	}
}

func TestRouterDisabledDropsEverything(t *testing.T) {
	h := newRouterHarness(t)
	post := newPost("1", "hello")
	h.store.Put(post)

	ctx := WithOptions(context.Background(), Disabled(true))
	if err := h.router.EntitySaved(ctx, post); err != nil {
		t.Fatal(err)
	}

	if h.queue.size() != 0 {
		t.Error("disabled scope must not enqueue")
	}
	if _, ok := h.client.document("search-blog-post", "blog.post.1"); ok {
		t.Error("disabled scope must not index")
	}
}

func TestRouterDeleteRemovesInline(t *testing.T) {
	h := newRouterHarness(t)
	post := newPost("1", "hello")

	ctx := WithOptions(context.Background(), Async(false))
	if err := h.router.EntityDeleted(ctx, post); err != nil {
		t.Fatal(err)
	}
	if len(h.client.deletedDocs) != 1 || h.client.deletedDocs[0] != "blog.post.1" {
		t.Errorf("expected one removal, got %v", h.client.deletedDocs)
	}
}

func TestRouterDeleteByIdentifier(t *testing.T) {
	h := newRouterHarness(t)

	id := NewIdentifier("blog", "post", "1")
	if err := h.router.EntityDeletedByID(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	reqs := decodeRequests(t, h.queue)
	if len(reqs) != 1 {
		t.Fatalf("expected one queued request, got %d", len(reqs))
	}
	if !reqs[0].Remove || reqs[0].Identifier != "blog.post.1" {
		t.Errorf("unexpected request: %+v", reqs[0])
	}
}

func TestRouterDeleteByIdentifierInline(t *testing.T) {
	h := newRouterHarness(t)

	ctx := WithOptions(context.Background(), Async(false))
	if err := h.router.EntityDeletedByID(ctx, NewIdentifier("blog", "post", "1")); err != nil {
		t.Fatal(err)
	}
	if h.queue.size() != 0 {
		t.Error("sync delete must not enqueue")
	}
	if len(h.client.deletedDocs) != 1 || h.client.deletedDocs[0] != "blog.post.1" {
		t.Errorf("expected one removal, got %v", h.client.deletedDocs)
	}
}

func TestRouterFanoutFromRelatedEntity(t *testing.T) {
	h := newRouterHarness(t)
	h.store.Put(newPost("1", "by alice"))
	h.store.Put(newPost("2", "also by alice"))

	author := &testEntity{ns: "blog", name: "author", pk: "9", indexable: true}
	if err := h.router.EntitySaved(context.Background(), author); err != nil {
		t.Fatal(err)
	}

	// The author has no index of its own; both posts get queued.
	reqs := decodeRequests(t, h.queue)
	if len(reqs) != 2 {
		t.Fatalf("expected two fan-out requests, got %d", len(reqs))
	}
	for _, req := range reqs {
		if req.Remove {
			t.Errorf("fan-out must always update, got %+v", req)
		}
	}
}

func TestRouterFanoutOnRelatedDelete(t *testing.T) {
	h := newRouterHarness(t)
	h.store.Put(newPost("1", "by alice"))

	author := &testEntity{ns: "blog", name: "author", pk: "9", indexable: true}
	if err := h.router.EntityDeleted(context.Background(), author); err != nil {
		t.Fatal(err)
	}

	reqs := decodeRequests(t, h.queue)
	if len(reqs) != 1 || reqs[0].Remove {
		t.Errorf("deleting a related entity must refresh dependents, got %+v", reqs)
	}
}

func TestRouterUnitOfWorkDeduplicates(t *testing.T) {
	h := newRouterHarness(t)
	post := newPost("1", "hello")
	h.store.Put(post)

	ctx := WithUnitOfWork(context.Background())
	if err := h.router.EntitySaved(ctx, post); err != nil {
		t.Fatal(err)
	}
	if err := h.router.EntitySaved(ctx, post); err != nil {
		t.Fatal(err)
	}

	if h.queue.size() != 1 {
		t.Errorf("expected one queued request within a unit of work, got %d", h.queue.size())
	}

	// A fresh scope dispatches again.
	if err := h.router.EntitySaved(context.Background(), post); err != nil {
		t.Fatal(err)
	}
	if h.queue.size() != 2 {
		t.Errorf("expected a new dispatch outside the unit of work, got %d", h.queue.size())
	}
}

func TestRouterInitIdempotent(t *testing.T) {
	h := newRouterHarness(t)
	if err := h.router.Init(); err != nil {
		t.Fatal(err)
	}

	h.store.Put(newPost("1", "x"))
	author := &testEntity{ns: "blog", name: "author", pk: "9", indexable: true}
	if err := h.router.EntitySaved(context.Background(), author); err != nil {
		t.Fatal(err)
	}

	if h.queue.size() != 1 {
		t.Errorf("repeated Init must not duplicate fan-out rules, got %d dispatches", h.queue.size())
	}
}
