package metadata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arisuwu/telestream/internal/ledger"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/arisuwu/telestream/internal/types"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

func newTestResolver() *Resolver {
	return NewResolver(session.NewPool(zap.NewNop()), ledger.New(), zap.NewNop())
}

func testDescriptor(messageID int64) *types.FileDescriptor {
	return &types.FileDescriptor{
		MessageID: messageID,
		Location:  &tg.InputDocumentFileLocation{ID: messageID},
		FileSize:  1024,
		FileName:  "file.bin",
		MimeType:  "application/octet-stream",
		UniqueID:  "doc1",
		MediaKind: types.MediaDocument,
	}
}

// TestResolveReturnsCachedDescriptorWithoutFetch covers spec.md §8 scenario
// 1: a cache hit must not touch the pool at all. The resolver here has no
// sessions registered, so any attempt to actually fetch would fail — a
// passing Resolve proves the cache path short-circuits before fetch.
func TestResolveReturnsCachedDescriptorWithoutFetch(t *testing.T) {
	r := newTestResolver()
	want := testDescriptor(12345)
	if err := r.cache.set(cacheKey(12345), want, descriptorTTLSeconds); err != nil {
		t.Fatalf("priming cache: %v", err)
	}

	got, err := r.Resolve(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Resolve returned error for a cached descriptor: %v", err)
	}
	if got.UniqueID != want.UniqueID || got.FileSize != want.FileSize {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// TestResolveDedupesConcurrentCallsForSameMessage covers spec.md §8's
// single-flight round-trip law: concurrent callers for the same message ID
// that arrive while a resolution is already in flight all observe that one
// resolution's result rather than starting their own.
func TestResolveDedupesConcurrentCallsForSameMessage(t *testing.T) {
	r := newTestResolver()
	const messageID = 777

	p := &pendingResolve{done: make(chan struct{})}
	r.mu.Lock()
	r.pending[messageID] = p
	r.mu.Unlock()

	const waiters = 8
	results := make(chan error, waiters)
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), messageID)
			results <- err
		}()
	}

	// Give every goroutine a chance to reach the pending wait before it
	// resolves, so this actually exercises the shared-wait branch rather
	// than racing ahead of it.
	time.Sleep(20 * time.Millisecond)

	wantDescriptor := testDescriptor(messageID)
	p.descriptor, p.err = wantDescriptor, nil
	close(p.done)

	wg.Wait()
	close(results)
	for err := range results {
		if err != nil {
			t.Errorf("waiter got error %v, want nil (shared result of the in-flight resolve)", err)
		}
	}
}

// TestResolveFailureStaysVisibleForGracePeriod covers the rationale in
// resolver.go's failureGracePeriod doc comment: a failed resolution's
// pending entry isn't deleted the instant the call returns, so a burst of
// late arrivals for the same message ID within the grace window see the
// same failure instead of each retrying Telegram.
func TestResolveFailureStaysVisibleForGracePeriod(t *testing.T) {
	r := newTestResolver()
	const messageID = 999

	_, err := r.Resolve(context.Background(), messageID)
	if err == nil {
		t.Fatal("expected an error resolving against a pool with no sessions")
	}

	r.mu.Lock()
	p, stillPending := r.pending[messageID]
	r.mu.Unlock()
	if !stillPending {
		t.Fatal("failed resolution's pending entry was removed before the grace period elapsed")
	}
	if p.err == nil {
		t.Error("pending entry should carry the failure for late arrivals to observe")
	}
}

func TestCacheStatsReportsEntriesAndCapacity(t *testing.T) {
	r := newTestResolver()
	entries, capacity := r.CacheStats()
	if entries != 0 {
		t.Fatalf("got %d entries on a fresh resolver, want 0", entries)
	}
	if capacity != cacheSizeBytes {
		t.Fatalf("got capacity %d, want %d", capacity, cacheSizeBytes)
	}

	if err := r.cache.set(cacheKey(1), testDescriptor(1), descriptorTTLSeconds); err != nil {
		t.Fatalf("set: %v", err)
	}
	entries, capacity = r.CacheStats()
	if entries != 1 {
		t.Fatalf("got %d entries after one set, want 1", entries)
	}
	if capacity != cacheSizeBytes {
		t.Fatalf("got capacity %d, want %d (capacity is fixed at construction)", capacity, cacheSizeBytes)
	}
}
