package upload

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDedupAndReadThrough(t *testing.T) {
	q := New(1024)
	release := make(chan struct{})
	var stored [][]byte
	var mu sync.Mutex

	storeFn := func(ctx context.Context, data []byte, metadata interface{}) error {
		<-release
		mu.Lock()
		stored = append(stored, data)
		mu.Unlock()
		return nil
	}

	if out := q.TryEnqueue("k", []byte("A"), nil, storeFn); out != Enqueued {
		t.Fatalf("expected Enqueued, got %v", out)
	}
	if out := q.TryEnqueue("k", []byte("B"), nil, storeFn); out != AlreadyPresent {
		t.Fatalf("expected AlreadyPresent, got %v", out)
	}

	data, _, ok := q.TryGet("k")
	if !ok || string(data) != "A" {
		t.Fatalf("expected read-through of A, got ok=%v data=%q", ok, data)
	}
	if q.QueuedBytes() != 1 {
		t.Fatalf("expected queuedBytes == 1, got %d", q.QueuedBytes())
	}

	close(release)
	q.Drain()

	if q.QueuedBytes() != 0 {
		t.Fatalf("expected queuedBytes == 0 after drain, got %d", q.QueuedBytes())
	}
}

func TestQueueFullDoesNotMutateState(t *testing.T) {
	q := New(2)
	storeFn := func(ctx context.Context, data []byte, metadata interface{}) error { return nil }

	out := q.TryEnqueue("k", []byte("abc"), nil, storeFn)
	if out != QueueFull {
		t.Fatalf("expected QueueFull, got %v", out)
	}
	if q.QueuedBytes() != 0 {
		t.Fatalf("expected queuedBytes unchanged at 0, got %d", q.QueuedBytes())
	}
	if _, _, ok := q.TryGet("k"); ok {
		t.Fatal("expected no entry to be registered for a rejected enqueue")
	}
}

func TestCloseCancelsContext(t *testing.T) {
	q := New(1024)
	started := make(chan struct{})
	storeFn := func(ctx context.Context, data []byte, metadata interface{}) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	q.TryEnqueue("k", []byte("x"), nil, storeFn)
	<-started

	done := make(chan struct{})
	go func() {
		q.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after context cancellation")
	}
}
