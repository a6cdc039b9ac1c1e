package searchsync

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcherEnqueues(t *testing.T) {
	backend, client, registry := newTestBackend(t)
	store := NewMemoryStore()
	coordinator := NewCoordinator(registry, backend, store)
	queue := &fakeQueue{}
	dispatcher := NewDispatcher(queue, coordinator)

	id := NewIdentifier("blog", "post", "1")
	if err := dispatcher.Dispatch(context.Background(), ActionUpdate, id); err != nil {
		t.Fatal(err)
	}

	if queue.size() != 1 {
		t.Fatalf("expected one queued body, got %d", queue.size())
	}
	if _, ok := client.document("search-blog-post", "blog.post.1"); ok {
		t.Error("successful enqueue must not touch the index")
	}
}

func TestDispatcherFallsBackInline(t *testing.T) {
	backend, client, registry := newTestBackend(t)
	store := NewMemoryStore()
	post := newPost("1", "hello")
	store.Put(post)

	coordinator := NewCoordinator(registry, backend, store)
	queue := &fakeQueue{putErr: errors.New("broker down")}
	metrics := NewInMemoryMetrics()
	dispatcher := NewDispatcher(queue, coordinator).WithMetrics(metrics)

	if err := dispatcher.Dispatch(context.Background(), ActionUpdate, post.Identifier()); err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}

	if _, ok := client.document("search-blog-post", "blog.post.1"); !ok {
		t.Error("fallback did not index the entity")
	}
	if metrics.Counters[MetricQueueFallback] != 1 {
		t.Errorf("expected one fallback, got %d", metrics.Counters[MetricQueueFallback])
	}
}

func TestDispatcherCircuitBreakerFailsFast(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	ctx := context.Background()
	boom := errors.New("broker down")

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected the broker error, got %v", err)
		}
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("breaker should be open, is %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("open breaker should fail fast, got %v", err)
	}
	if called {
		t.Error("open breaker must not call the operation")
	}
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("down") })
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(5 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("half-open probe should run: %v", err)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("successful probe should close the breaker, is %s", cb.State())
	}
}
