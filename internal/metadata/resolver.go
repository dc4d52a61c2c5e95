// Package metadata resolves a Telegram message ID into a FileDescriptor
// and caches the result. Concurrent requests for the same message ID that
// arrive before the first resolution finishes all wait on that one
// in-flight fetch rather than each hitting Telegram separately.
package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arisuwu/telestream/internal/ledger"
	routerpkg "github.com/arisuwu/telestream/internal/router"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/arisuwu/telestream/internal/streaming"
	"github.com/arisuwu/telestream/internal/types"
	"go.uber.org/zap"
)

// cacheSizeBytes bounds the descriptor cache's footprint regardless of how
// many distinct messages get resolved over the process lifetime.
const cacheSizeBytes = 100 * 1024 * 1024

// descriptorTTLSeconds is how long a successfully resolved descriptor
// stays cached. file_reference tokens embedded in it are valid far longer
// than this on Telegram's side, so a stale cache entry just costs a round
// trip, never correctness.
const descriptorTTLSeconds = 3600

// failureGracePeriod is how long a failed resolution stays visible to
// concurrent late arrivals before a fresh attempt is allowed. This is why
// golang.org/x/sync/singleflight isn't used here directly: its Group drops
// an entry the instant a call finishes, success or failure, which would
// let a burst of requests for a message Telegram hasn't propagated yet
// hot-loop retry it dozens of times a second.
const failureGracePeriod = 5 * time.Second

type pendingResolve struct {
	done       chan struct{}
	descriptor *types.FileDescriptor
	err        error
}

type Resolver struct {
	pool  *session.Pool
	ldgr  *ledger.Ledger
	cache *descriptorCache
	log   *zap.Logger

	mu      sync.Mutex
	pending map[int64]*pendingResolve
}

func NewResolver(pool *session.Pool, ldgr *ledger.Ledger, log *zap.Logger) *Resolver {
	return &Resolver{
		pool:    pool,
		ldgr:    ldgr,
		cache:   newDescriptorCache(cacheSizeBytes),
		log:     log.Named("MetadataResolver"),
		pending: make(map[int64]*pendingResolve),
	}
}

// Resolve returns the FileDescriptor for messageID, from cache if present,
// otherwise via a single upstream fetch shared by every caller racing to
// resolve the same message ID concurrently.
func (r *Resolver) Resolve(ctx context.Context, messageID int64) (*types.FileDescriptor, error) {
	if d, ok := r.cache.get(cacheKey(messageID)); ok {
		return d, nil
	}

	r.mu.Lock()
	if p, ok := r.pending[messageID]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.descriptor, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := &pendingResolve{done: make(chan struct{})}
	r.pending[messageID] = p
	r.mu.Unlock()

	d, err := r.fetch(ctx, messageID)
	p.descriptor, p.err = d, err
	close(p.done)

	if err != nil {
		time.AfterFunc(failureGracePeriod, func() {
			r.mu.Lock()
			delete(r.pending, messageID)
			r.mu.Unlock()
		})
		return nil, err
	}

	r.mu.Lock()
	delete(r.pending, messageID)
	r.mu.Unlock()

	if d.FileSize > 0 {
		if cacheErr := r.cache.set(cacheKey(messageID), d, descriptorTTLSeconds); cacheErr != nil {
			r.log.Warn("failed to cache descriptor", zap.Int64("messageID", messageID), zap.Error(cacheErr))
		}
	}
	return d, nil
}

// Invalidate drops a cached descriptor so the next Resolve fetches it
// afresh. The streaming path does not call it.
func (r *Resolver) Invalidate(messageID int64) {
	r.cache.delete(cacheKey(messageID))
}

// CacheStats reports the descriptor cache's current entry count and its
// fixed byte capacity, for the status dashboard.
func (r *Resolver) CacheStats() (entries int64, capacityBytes int) {
	return r.cache.entryCount(), r.cache.capacity()
}

// fetch tries, in order: the power session (it posted nothing itself but
// is long-lived and rarely rate-limited), the primary session (it can
// always see what it posted), and finally a router-selected secondary.
// Each step has its own timeout budget so one wedged session can't stall
// metadata resolution indefinitely.
func (r *Resolver) fetch(ctx context.Context, messageID int64) (*types.FileDescriptor, error) {
	attempt := func(sess *session.Session, timeout time.Duration) (*types.FileDescriptor, error) {
		if sess == nil {
			return nil, session.ErrMessageNotFound
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		msg, err := sess.GetMessage(cctx, messageID)
		if err != nil {
			return nil, err
		}
		return session.Describe(msg)
	}

	if power := r.pool.Get(session.PowerID); power != nil {
		if d, err := attempt(power, 10*time.Second); err == nil {
			return d, nil
		} else {
			r.log.Debug("power session failed to resolve metadata", zap.Int64("messageID", messageID), zap.Error(err))
		}
	}

	if primary := r.pool.Get(session.PrimaryID); primary != nil {
		if d, err := attempt(primary, 10*time.Second); err == nil {
			return d, nil
		} else {
			r.log.Debug("primary session failed to resolve metadata", zap.Int64("messageID", messageID), zap.Error(err))
		}
	}

	if r.pool.HasSecondaries() {
		entries := r.ldgr.Snapshot(r.pool.IDs(), messageID)
		entries = routerpkg.Exclude(entries, session.PrimaryID, session.PowerID)
		if id, ok := routerpkg.Select(entries); ok {
			if sess := r.pool.Get(id); sess != nil {
				if d, err := attempt(sess, 8*time.Second); err == nil {
					return d, nil
				} else {
					r.log.Debug("secondary session failed to resolve metadata", zap.Int("sessionID", id), zap.Int64("messageID", messageID), zap.Error(err))
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: message %d", streaming.ErrDescriptorNotFound, messageID)
}
