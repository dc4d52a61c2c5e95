package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arisuwu/telestream/internal/ledger"
	routerpkg "github.com/arisuwu/telestream/internal/router"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Stream delivers [start, start+contentLength) of the file at location to
// dest, failing over across sessions as needed. It implements the
// Selecting -> Streaming -> Recovering -> Streaming' -> Done/Failed state
// machine: each failed attempt marks the offending session blind (if it
// simply hasn't seen the file yet) or blacklisted (if it errored outright),
// then re-selects and resumes from the last byte actually written.
//
// Every session this call increments the workload for is decremented
// exactly once, however the call ends — including client disconnect.
func Stream(
	ctx context.Context,
	pool *session.Pool,
	ldgr *ledger.Ledger,
	messageID int64,
	location tg.InputFileLocationClass,
	dest io.Writer,
	start, contentLength int64,
	log *zap.Logger,
) error {
	touched := make(map[int]bool)
	defer func() {
		for id := range touched {
			ldgr.DecWorkload(id)
		}
	}()

	maxAttempts := pool.Len()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var excludeIDs []int
	var bytesSent int64

	for attempt := 0; attempt < maxAttempts; attempt++ {
		entries := ldgr.Snapshot(pool.IDs(), messageID)
		entries = routerpkg.Exclude(entries, excludeIDs...)
		if len(entries) == 0 {
			break
		}
		id, ok := routerpkg.Select(entries)
		if !ok {
			break
		}

		sess := pool.Get(id)
		if sess == nil {
			excludeIDs = append(excludeIDs, id)
			continue
		}

		if !touched[id] {
			ldgr.IncWorkload(id)
			touched[id] = true
		}

		reader := NewChunkReader(ctx, sess, location, start+bytesSent, contentLength-bytesSent)
		n, err := io.Copy(dest, reader)
		bytesSent += n

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ErrClientDisconnect
		}

		log.Warn("session failed mid-stream, failing over",
			zap.Int("sessionID", id),
			zap.Int64("messageID", messageID),
			zap.Int64("bytesSentSoFar", bytesSent),
			zap.Error(err))

		var notVisible *session.NotYetVisibleError
		var rateLimited *session.RateLimitedError
		switch {
		case errors.As(err, &notVisible):
			ldgr.MarkBlind(messageID, id, 30*time.Second)
		case errors.As(err, &rateLimited):
			ldgr.Blacklist(id, rateLimited.RetryAfter)
		case id == session.PrimaryID && errors.Is(err, session.ErrTimeout):
			// Don't treat the primary's timeout under load as a hard
			// failure; a short cool-off is enough to let it catch up.
			ldgr.Blacklist(id, 5*time.Second)
		default:
			ldgr.Blacklist(id, 60*time.Second)
		}
		excludeIDs = append(excludeIDs, id)
	}

	if bytesSent > 0 {
		return fmt.Errorf("stream interrupted after %d bytes: %w", bytesSent, ErrNoFallbackAvailable)
	}
	return ErrNoFallbackAvailable
}
