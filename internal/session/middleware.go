package session

import (
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// floodMiddleware returns the middleware chain every session's client is
// built with: a flood-wait waiter that retries rate-limited RPCs itself, and
// a client-side limiter that keeps us from tripping FLOOD_WAIT in the first
// place.
func floodMiddleware(log *zap.Logger) []telegram.Middleware {
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)
	limiter := ratelimit.New(rate.Every(time.Millisecond*33), 15)
	return []telegram.Middleware{waiter, limiter}
}
