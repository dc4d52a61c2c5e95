package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arisuwu/telestream/config"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
)

// PrimaryID, PowerID are the fixed session IDs spec.md assigns special
// meaning to: 0 always exists and is the one whose failure to start is
// fatal, 99 is the optional long-lived user session used to resolve
// metadata ahead of any bot worker.
const (
	PrimaryID = 0
	PowerID   = 99
)

// Pool owns every live Session, keyed by ID, and the handful of lifecycle
// operations the rest of the gateway needs: start the fixed sessions,
// iterate the pool, look one up by ID.
type Pool struct {
	mu       sync.RWMutex
	sessions map[int]*Session
	log      *zap.Logger
}

func NewPool(log *zap.Logger) *Pool {
	return &Pool{
		sessions: make(map[int]*Session),
		log:      log.Named("SessionPool"),
	}
}

// Get returns the session for id, or nil if it isn't running.
func (p *Pool) Get(id int) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[id]
}

// Put registers a started session under its ID, replacing any prior one.
func (p *Pool) Put(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = s
}

// Remove drops a session from the pool, e.g. when the maintenance loop
// drops a session that failed its health probe; a later tick restarts it.
func (p *Pool) Remove(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
}

// IDs returns every currently registered session ID, including the power
// session if started. Order is unspecified.
func (p *Pool) IDs() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return ids
}

// HasSecondaries reports whether any worker besides the primary bot is
// currently running — the metadata resolver only consults the router when
// this is true.
func (p *Pool) HasSecondaries() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id := range p.sessions {
		if id != PrimaryID && id != PowerID {
			return true
		}
	}
	return false
}

// Len reports the number of live sessions, used as the fail-over state
// machine's retry bound (spec.md §4.5: bounded by session count).
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

func sessionDir() string {
	return filepath.Join(".", "sessions")
}

func newClient(apiID int32, apiHash string, clientType gotgproto.ClientType, sessionFile string, log *zap.Logger) (*gotgproto.Client, error) {
	var sessionType sessionMaker.SessionConstructor
	if config.ValueOf.UseSessionFile {
		sessionType = sessionMaker.SqlSession(sqlite.Open(filepath.Join(sessionDir(), sessionFile)))
	} else {
		sessionType = sessionMaker.SimpleSession()
	}
	return gotgproto.NewClient(
		int(apiID),
		apiHash,
		clientType,
		&gotgproto.ClientOpts{
			Session:          sessionType,
			DisableCopyright: true,
			Middlewares:      floodMiddleware(log),
		},
	)
}

// StartPrimary brings up session 0 from BOT_TOKEN. Its failure is fatal to
// the process — the gateway has nothing to resolve messages with otherwise.
func (p *Pool) StartPrimary() error {
	if config.ValueOf.UseSessionFile {
		if err := os.MkdirAll(sessionDir(), os.ModePerm); err != nil {
			return fmt.Errorf("creating sessions directory: %w", err)
		}
	}
	client, err := newClient(config.ValueOf.ApiID, config.ValueOf.ApiHash,
		gotgproto.ClientTypeBot(config.ValueOf.BotToken), "primary.session", p.log)
	if err != nil {
		return fmt.Errorf("starting primary session: %w", err)
	}
	s := &Session{ID: PrimaryID, Client: client, Self: client.Self, log: p.log, startedAt: time.Now()}
	p.Put(s)
	p.log.Sugar().Infof("Primary session started as @%s", client.Self.Username)
	return nil
}

// StartPower brings up session 99 from STRING_SESSION, if one was
// configured. Its failure is logged but non-fatal — the gateway degrades to
// bot-only metadata resolution.
func (p *Pool) StartPower() {
	if config.ValueOf.StringSession == "" {
		return
	}
	client, err := gotgproto.NewClient(
		int(config.ValueOf.ApiID),
		config.ValueOf.ApiHash,
		gotgproto.ClientTypePhone(""),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.StringSession(config.ValueOf.StringSession),
			DisableCopyright: true,
			Middlewares:      floodMiddleware(p.log),
		},
	)
	if err != nil {
		p.log.Error("Failed to start power session, continuing without it", zap.Error(err))
		return
	}
	s := &Session{ID: PowerID, Client: client, Self: client.Self, log: p.log, startedAt: time.Now()}
	p.Put(s)
	p.log.Sugar().Infof("Power session started as @%s", client.Self.Username)
}

// StartSecondary starts a single worker bot with the given session ID,
// bounded by WORKER_START_TIMEOUT_SECONDS.
func (p *Pool) StartSecondary(id int, token string) error {
	timeout := time.Duration(config.ValueOf.WorkerStartTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	type result struct {
		client *gotgproto.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		client, err := newClient(config.ValueOf.ApiID, config.ValueOf.ApiHash,
			gotgproto.ClientTypeBot(token), fmt.Sprintf("worker-%d.session", id), p.log)
		done <- result{client, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("starting secondary session %d: %w", id, r.err)
		}
		s := &Session{ID: id, Client: r.client, Self: r.client.Self, log: p.log, startedAt: time.Now()}
		p.Put(s)
		p.log.Sugar().Infof("Secondary session %d started as @%s", id, r.client.Self.Username)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("starting secondary session %d: timed out after %s", id, timeout)
	}
}

// StartSecondaries brings up every MULTI_TOKEN session, staggered by at
// least 2s apiece so a burst of new client connections doesn't itself look
// like abuse to Telegram.
func (p *Pool) StartSecondaries() {
	if len(config.ValueOf.MultiTokens) == 0 {
		return
	}
	p.log.Sugar().Infof("Starting %d secondary session(s)", len(config.ValueOf.MultiTokens))
	for id, token := range config.ValueOf.MultiTokens {
		if err := p.StartSecondary(id, token); err != nil {
			p.log.Error("Secondary session failed to start", zap.Int("id", id), zap.Error(err))
		}
		time.Sleep(2 * time.Second)
	}
}
