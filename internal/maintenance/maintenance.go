// Package maintenance runs the periodic reconnect/health-probe loop that
// keeps the session pool honest: sessions that dropped get restarted,
// sessions that stopped responding get torn down so the next tick can try
// again. The primary session is the one exception — it degrades in place
// and is restarted, never removed, so the gateway never ends up with no
// session at all.
package maintenance

import (
	"context"
	"time"

	"github.com/arisuwu/telestream/config"
	"github.com/arisuwu/telestream/internal/ledger"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tickInterval  = 60 * time.Second
	probeDeadline = 5 * time.Second
)

// Loop drives the maintenance ticker until ctx is cancelled.
type Loop struct {
	pool *session.Pool
	ldgr *ledger.Ledger
	log  *zap.Logger
}

func NewLoop(pool *session.Pool, ldgr *ledger.Ledger, log *zap.Logger) *Loop {
	return &Loop{pool: pool, ldgr: ldgr, log: log.Named("Maintenance")}
}

// Run blocks, ticking every 60s, until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick performs the two-step procedure from spec.md §4.7: restart what's
// missing, then probe what's running and drop what doesn't answer. Both
// steps bound their per-session concurrency with errgroup so one tick
// can't pile up unbounded goroutines if every worker is unhealthy at once.
func (l *Loop) tick(ctx context.Context) {
	l.restartMissing(ctx)
	l.probeRunning(ctx)
}

func (l *Loop) restartMissing(ctx context.Context) {
	var missing []int
	for id := range config.ValueOf.MultiTokens {
		if l.pool.Get(id) == nil {
			missing = append(missing, id)
		}
	}
	if l.pool.Get(session.PrimaryID) == nil {
		l.log.Warn("primary session missing, attempting restart")
		l.restartPrimary()
	}
	if config.ValueOf.StringSession != "" && l.pool.Get(session.PowerID) == nil {
		l.log.Warn("power session missing, attempting restart")
		l.pool.StartPower()
		if s := l.pool.Get(session.PowerID); s != nil {
			l.ldgr.Track(session.PowerID)
		}
	}
	if len(missing) == 0 {
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, id := range missing {
		id := id
		g.Go(func() error {
			token := config.ValueOf.MultiTokens[id]
			if err := l.pool.StartSecondary(id, token); err != nil {
				l.log.Warn("failed to restart session", zap.Int("sessionID", id), zap.Error(err))
				return nil
			}
			l.ldgr.Track(id)
			l.log.Info("session restarted", zap.Int("sessionID", id))
			return nil
		})
	}
	_ = g.Wait()
}

// restartPrimary re-runs StartPrimary, bounded by the same
// WORKER_START_TIMEOUT_SECONDS budget StartSecondary uses, so a wedged
// reconnect attempt can't stall the tick forever. Session 0 is never
// deleted outright (see probeRunning) — this is what actually brings it
// back after it flaps.
func (l *Loop) restartPrimary() {
	timeout := time.Duration(config.ValueOf.WorkerStartTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	done := make(chan error, 1)
	go func() { done <- l.pool.StartPrimary() }()

	select {
	case err := <-done:
		if err != nil {
			l.log.Error("failed to restart primary session", zap.Error(err))
			return
		}
		l.ldgr.Track(session.PrimaryID)
		l.log.Info("primary session restarted")
	case <-time.After(timeout):
		l.log.Error("primary session restart timed out", zap.Duration("timeout", timeout))
	}
}

func (l *Loop) probeRunning(ctx context.Context) {
	ids := l.pool.IDs()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sess := l.pool.Get(id)
			if sess == nil {
				return nil
			}
			probeCtx, cancel := context.WithTimeout(ctx, probeDeadline)
			defer cancel()
			_, err := sess.Client.API().UsersGetFullUser(probeCtx, &tg.InputUserSelf{})
			if err == nil {
				return nil
			}
			if id == session.PrimaryID {
				// Never Remove the primary for a failed probe: StartPrimary
				// only overwrites the pool entry on success (see pool.go's
				// Put), so the stale-but-serving client stays in place if
				// this restart attempt also fails.
				l.log.Warn("primary session failed health probe, restarting in place", zap.Error(err))
				l.restartPrimary()
				return nil
			}
			l.log.Warn("session failed health probe, dropping", zap.Int("sessionID", id), zap.Error(err))
			l.pool.Remove(id)
			l.ldgr.Untrack(id)
			return nil
		})
	}
	_ = g.Wait()
}
