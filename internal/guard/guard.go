// Package guard keeps the console's session honest. While a session exists
// it re-validates the token on a fixed interval and listens for other
// consoles sharing the store logging out; either kind of invalidation ends
// in a forced logout and a redirect to the login page.
package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/ghaggin/datingadmin/internal/kv"
	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/ghaggin/datingadmin/internal/session"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DefaultInterval   = 5 * time.Minute
	DefaultLoginRoute = "/login"
)

type State int32

const (
	StateNoSession State = iota
	StateActive
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInvalid:
		return "invalid"
	default:
		return "no_session"
	}
}

// Outcome of a single validation tick.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeAuthFailed Outcome = "auth_failed"
	OutcomeTransient  Outcome = "transient"
	OutcomeSkipped    Outcome = "skipped"
)

// Causes of a forced logout.
const (
	CauseValidation   = "validation"
	CauseExpired      = "expired"
	CauseMissing      = "missing"
	CauseStorage      = "storage"
	CauseUnauthorized = "unauthorized"
)

// Sessions is what the guard needs from the session manager.
type Sessions interface {
	Token(ctx context.Context) string
	HasCredentials(ctx context.Context) bool
	Logout(ctx context.Context) error
	Watch(ctx context.Context) (<-chan kv.Change, error)
}

type Validator interface {
	Me(ctx context.Context) (*model.SessionUser, error)
}

type Navigator interface {
	Navigate(route string)
}

type Guard struct {
	sessions   Sessions
	validator  Validator
	nav        Navigator
	clock      clockwork.Clock
	interval   time.Duration
	loginRoute string
	log        *zap.Logger
	metrics    *Metrics

	state    atomic.Int32
	checking atomic.Bool
	forcing  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Params struct {
	fx.In

	Sessions  *session.Manager
	Backend   session.Backend
	Navigator Navigator
	Config    *config.Config
	Log       *zap.Logger
	Metrics   *Metrics        `optional:"true"`
	Clock     clockwork.Clock `optional:"true"`
}

func New(p Params) *Guard {
	interval := DefaultInterval
	loginRoute := DefaultLoginRoute
	if p.Config != nil {
		if p.Config.Guard.Interval > 0 {
			interval = p.Config.Guard.Interval
		}
		if p.Config.Admin.LoginPath != "" {
			loginRoute = p.Config.Admin.LoginPath
		}
	}

	return newGuard(p.Sessions, p.Backend, p.Navigator, interval, loginRoute, p.Clock, p.Metrics, p.Log)
}

func newGuard(s Sessions, v Validator, nav Navigator, interval time.Duration, loginRoute string, clock clockwork.Clock, m *Metrics, log *zap.Logger) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Guard{
		sessions:   s,
		validator:  v,
		nav:        nav,
		clock:      clock,
		interval:   interval,
		loginRoute: loginRoute,
		log:        log,
		metrics:    m,
	}
}

func (g *Guard) State() State {
	return State(g.state.Load())
}

// Start activates the guard if a session exists. It validates once right
// away and then every interval, and watches the store for logouts made
// elsewhere. Starting a running guard, or one in the middle of a forced
// logout, does nothing.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil || g.forcing.Load() {
		return nil
	}
	if !g.sessions.HasCredentials(ctx) {
		g.state.Store(int32(StateNoSession))
		g.log.Debug("no session, guard inert")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	changes, err := g.sessions.Watch(runCtx)
	if err != nil {
		cancel()
		return err
	}

	g.cancel = cancel
	g.state.Store(int32(StateActive))

	ticker := g.clock.NewTicker(g.interval)
	g.wg.Add(2)
	go g.tickLoop(runCtx, ticker)
	go g.watchLoop(runCtx, changes)

	g.log.Info("session guard started", zap.Duration("interval", g.interval))
	return nil
}

// Stop cancels the timer and the store listener and waits for both. It
// must not be called from inside a check.
func (g *Guard) Stop() {
	g.halt()
	g.wg.Wait()
}

// OnStop adapts Stop to an fx hook.
func (g *Guard) OnStop(_ context.Context) error {
	g.Stop()
	return nil
}

// halt cancels the background tasks without waiting for them, so a task
// can end its own guard.
func (g *Guard) halt() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.State() == StateActive {
		g.state.Store(int32(StateNoSession))
	}
}

func (g *Guard) tickLoop(ctx context.Context, ticker clockwork.Ticker) {
	defer g.wg.Done()
	defer ticker.Stop()

	g.spawnCheck(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.spawnCheck(ctx)
		}
	}
}

// spawnCheck runs each tick on its own so that a slow check makes the
// next tick skip rather than queue behind it.
func (g *Guard) spawnCheck(ctx context.Context) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.Check(ctx)
	}()
}

func (g *Guard) watchLoop(ctx context.Context, changes <-chan kv.Change) {
	defer g.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if session.EndsSession(c) {
				g.log.Info("session ended in another console", zap.String("key", c.Key))
				g.ForceLogout(ctx, CauseStorage)
			}
		}
	}
}

// Check performs one validation tick. At most one check runs at a time;
// a tick arriving while another is in flight is dropped.
func (g *Guard) Check(ctx context.Context) Outcome {
	if !g.checking.CompareAndSwap(false, true) {
		g.metrics.tick(OutcomeSkipped)
		return OutcomeSkipped
	}
	defer g.checking.Store(false)

	outcome := g.check(ctx)
	g.metrics.tick(outcome)
	return outcome
}

func (g *Guard) check(ctx context.Context) Outcome {
	token := g.sessions.Token(ctx)
	if token == "" {
		g.ForceLogout(ctx, CauseMissing)
		return OutcomeAuthFailed
	}

	if tokenExpired(token, g.clock.Now()) {
		g.ForceLogout(ctx, CauseExpired)
		return OutcomeAuthFailed
	}

	_, err := g.validator.Me(ctx)
	switch {
	case err == nil:
		return OutcomeOK
	case apiclient.IsAuth(err):
		g.log.Info("session rejected by backend", zap.Error(err))
		g.ForceLogout(ctx, CauseValidation)
		return OutcomeAuthFailed
	default:
		g.log.Warn("session validation failed, will retry", zap.Error(err))
		return OutcomeTransient
	}
}

// ForceLogout clears the session and sends the console to the login page.
// Triggers that arrive while a logout is running, or after the session is
// already gone, are ignored. Reports whether this call did the logout.
func (g *Guard) ForceLogout(ctx context.Context, cause string) bool {
	if !g.forcing.CompareAndSwap(false, true) {
		return false
	}
	defer g.forcing.Store(false)

	ctx = context.WithoutCancel(ctx)
	if g.State() != StateActive && !g.sessions.HasCredentials(ctx) {
		return false
	}

	g.state.Store(int32(StateInvalid))
	g.halt()

	if err := g.sessions.Logout(ctx); err != nil {
		g.log.Error("failed clearing session", zap.Error(err))
	}
	g.state.Store(int32(StateNoSession))

	g.log.Info("forced logout", zap.String("cause", cause))
	g.metrics.forcedLogout(cause)
	g.nav.Navigate(g.loginRoute)
	return true
}
