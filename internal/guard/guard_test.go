package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/kv"
	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/ghaggin/datingadmin/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testInterval = 5 * time.Minute
	waitFor      = 2 * time.Second
	pollEvery    = 5 * time.Millisecond
)

type fakeBackend struct {
	me      func(ctx context.Context) error
	release chan struct{}
	calls   atomic.Int32
	logouts atomic.Int32
}

func (f *fakeBackend) Login(context.Context, model.Credentials) (*model.Session, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) Logout(context.Context) error {
	f.logouts.Add(1)
	if f.release != nil {
		<-f.release
	}
	return nil
}

func (f *fakeBackend) Me(ctx context.Context) (*model.SessionUser, error) {
	f.calls.Add(1)
	if f.me != nil {
		if err := f.me(ctx); err != nil {
			return nil, err
		}
	}
	return &model.SessionUser{ID: "1"}, nil
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type tab struct {
	sessions *session.Manager
	backend  *fakeBackend
	nav      *recordingNavigator
	clock    clockwork.FakeClock
	metrics  *Metrics
	guard    *Guard
}

func newTab(t *testing.T, store kv.Store) *tab {
	t.Helper()

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	tb := &tab{
		backend: &fakeBackend{},
		nav:     &recordingNavigator{},
		clock:   clockwork.NewFakeClock(),
		metrics: metrics,
	}
	tb.sessions = session.New(session.Params{Store: store, Backend: tb.backend, Log: zap.NewNop()})
	tb.guard = newGuard(tb.sessions, tb.backend, tb.nav, testInterval, DefaultLoginRoute, tb.clock, metrics, zap.NewNop())
	t.Cleanup(tb.guard.Stop)
	return tb
}

func (tb *tab) login(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, tb.sessions.SetSession(context.Background(), &model.Session{
		Token:      token,
		User:       model.SessionUser{ID: "1", RoleName: model.RoleAdmin},
		IsLoggedIn: true,
	}))
}

func (tb *tab) ticks(o Outcome) float64 {
	return testutil.ToFloat64(tb.metrics.ticks.WithLabelValues(string(o)))
}

func (tb *tab) logouts(cause string) float64 {
	return testutil.ToFloat64(tb.metrics.logouts.WithLabelValues(cause))
}

func authError() error {
	return &apiclient.Error{Kind: apiclient.KindAuth, Status: 401, Message: "Unauthorized"}
}

func TestGuard_InertWithoutSession(t *testing.T) {
	tb := newTab(t, kv.NewMemory())

	require.NoError(t, tb.guard.Start(context.Background()))
	assert.Equal(t, StateNoSession, tb.guard.State())

	tb.clock.Advance(3 * testInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, tb.backend.calls.Load())
	assert.Empty(t, tb.nav.Routes())
}

func TestGuard_UnauthorizedForcesLogout(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")
	tb.backend.me = func(context.Context) error { return authError() }

	require.NoError(tb.guard.Start(context.Background()))

	require.Eventually(func() bool { return len(tb.nav.Routes()) > 0 }, waitFor, pollEvery)
	assert.Equal([]string{"/login"}, tb.nav.Routes())

	s, err := tb.sessions.GetCurrentUser(context.Background())
	require.NoError(err)
	assert.Nil(s)
	assert.False(tb.sessions.HasCredentials(context.Background()))

	assert.Equal(StateNoSession, tb.guard.State())
	assert.EqualValues(1, tb.backend.logouts.Load())
	assert.Equal(1.0, tb.logouts(CauseValidation))
	assert.Equal(1.0, tb.ticks(OutcomeAuthFailed))
}

func TestGuard_AuthMessageForcesLogout(t *testing.T) {
	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")
	tb.backend.me = func(context.Context) error { return errors.New("Authentication required") }

	require.NoError(t, tb.guard.Start(context.Background()))
	require.Eventually(t, func() bool { return len(tb.nav.Routes()) == 1 }, waitFor, pollEvery)
	assert.False(t, tb.sessions.HasCredentials(context.Background()))
}

func TestGuard_TransientFailureKeepsSession(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")
	tb.backend.me = func(context.Context) error {
		return &apiclient.Error{Kind: apiclient.KindTransport, Status: 500, Message: "boom"}
	}

	require.NoError(tb.guard.Start(ctx))
	require.Eventually(func() bool { return tb.ticks(OutcomeTransient) == 1 }, waitFor, pollEvery)

	tb.clock.BlockUntil(1)
	tb.clock.Advance(testInterval)
	require.Eventually(func() bool { return tb.ticks(OutcomeTransient) == 2 }, waitFor, pollEvery)

	tb.backend.me = nil
	tb.clock.Advance(testInterval)
	require.Eventually(func() bool { return tb.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)

	s, err := tb.sessions.GetCurrentUser(ctx)
	require.NoError(err)
	require.NotNil(s)
	assert.Equal("t1", s.Token)
	assert.Empty(tb.nav.Routes())
	assert.Equal(StateActive, tb.guard.State())
	assert.Zero(tb.backend.logouts.Load())
}

func TestGuard_SkipsOverlappingChecks(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")
	tb.backend.me = func(context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		<-release
		return nil
	}

	require.NoError(tb.guard.Start(ctx))
	require.Eventually(func() bool { return inFlight.Load() == 1 }, waitFor, pollEvery)

	assert.Equal(OutcomeSkipped, tb.guard.Check(ctx))

	tb.clock.BlockUntil(1)
	tb.clock.Advance(testInterval)
	require.Eventually(func() bool { return tb.ticks(OutcomeSkipped) == 2 }, waitFor, pollEvery)

	close(release)
	require.Eventually(func() bool { return tb.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)

	assert.EqualValues(1, tb.backend.calls.Load())
	assert.EqualValues(1, maxInFlight.Load())
}

func TestGuard_OtherTabLogoutRedirectsWithoutTick(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	store := kv.NewMemory()
	tabA := newTab(t, store)
	tabB := newTab(t, store.Handle())
	tabA.login(t, "t1")

	require.NoError(tabB.guard.Start(ctx))
	require.Eventually(func() bool { return tabB.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)

	require.NoError(tabA.sessions.Logout(ctx))

	require.Eventually(func() bool { return len(tabB.nav.Routes()) == 1 }, waitFor, pollEvery)
	assert.Equal([]string{"/login"}, tabB.nav.Routes())
	assert.Equal(StateNoSession, tabB.guard.State())
	assert.EqualValues(1, tabB.backend.calls.Load())
	assert.Equal(1.0, tabB.logouts(CauseStorage))
	assert.Empty(tabA.nav.Routes())
}

func TestGuard_ExpiredJWTSkipsBackend(t *testing.T) {
	tb := newTab(t, kv.NewMemory())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": tb.clock.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	tb.login(t, token)

	require.NoError(t, tb.guard.Start(context.Background()))
	require.Eventually(t, func() bool { return len(tb.nav.Routes()) == 1 }, waitFor, pollEvery)

	assert.Zero(t, tb.backend.calls.Load())
	assert.Equal(t, 1.0, tb.logouts(CauseExpired))
}

func TestGuard_StopCancelsTimerAndListener(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	tabA := newTab(t, store)
	tabB := newTab(t, store.Handle())
	tabA.login(t, "t1")

	require.NoError(t, tabB.guard.Start(ctx))
	require.Eventually(t, func() bool { return tabB.backend.calls.Load() == 1 }, waitFor, pollEvery)

	tabB.guard.Stop()
	tabB.guard.Stop()
	assert.Equal(t, StateNoSession, tabB.guard.State())

	tabB.clock.Advance(3 * testInterval)
	require.NoError(t, tabA.sessions.Logout(ctx))
	time.Sleep(50 * time.Millisecond)

	assert.EqualValues(t, 1, tabB.backend.calls.Load())
	assert.Empty(t, tabB.nav.Routes())
}

func TestGuard_ForceLogoutOncePerSession(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")

	assert.True(tb.guard.ForceLogout(ctx, CauseUnauthorized))
	assert.False(tb.guard.ForceLogout(ctx, CauseUnauthorized))
	assert.Equal([]string{"/login"}, tb.nav.Routes())
	assert.Equal(1.0, tb.logouts(CauseUnauthorized))

	tb.login(t, "t2")
	require.NoError(tb.guard.Start(ctx))
	require.Eventually(func() bool { return tb.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)
	assert.Equal(StateActive, tb.guard.State())
}

func TestGuard_StartTwiceIsNoop(t *testing.T) {
	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")

	require.NoError(t, tb.guard.Start(context.Background()))
	require.NoError(t, tb.guard.Start(context.Background()))
	require.Eventually(t, func() bool { return tb.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, tb.backend.calls.Load())
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.True(t, tokenExpired(sign(jwt.MapClaims{"exp": now.Add(-time.Second).Unix()}), now))
	assert.False(t, tokenExpired(sign(jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), now))
	assert.False(t, tokenExpired(sign(jwt.MapClaims{"sub": "1"}), now))
	assert.False(t, tokenExpired("opaque-session-token", now))
}

func TestGuard_StartAfterOtherTabLogsIn(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	store := kv.NewMemory()
	tabA := newTab(t, store)
	tabB := newTab(t, store.Handle())

	require.NoError(tabB.guard.Start(context.Background()))
	require.Equal(StateNoSession, tabB.guard.State())

	tabA.login(t, "t1")
	require.NoError(tabB.guard.Start(context.Background()))
	assert.Equal(StateActive, tabB.guard.State())
	require.Eventually(func() bool { return tabB.ticks(OutcomeOK) == 1 }, waitFor, pollEvery)

	require.NoError(tabA.sessions.Logout(context.Background()))
	require.Eventually(func() bool { return len(tabB.nav.Routes()) == 1 }, waitFor, pollEvery)
	assert.Equal([]string{"/login"}, tabB.nav.Routes())
	assert.Equal(StateNoSession, tabB.guard.State())
}

func TestGuard_StartWaitsOutForcedLogout(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	tb := newTab(t, kv.NewMemory())
	tb.login(t, "t1")
	tb.backend.release = make(chan struct{})

	done := make(chan bool)
	go func() { done <- tb.guard.ForceLogout(context.Background(), CauseUnauthorized) }()
	require.Eventually(func() bool { return tb.backend.logouts.Load() == 1 }, waitFor, pollEvery)

	require.NoError(tb.guard.Start(context.Background()))
	assert.Equal(StateInvalid, tb.guard.State())

	close(tb.backend.release)
	assert.True(<-done)
	assert.Equal(StateNoSession, tb.guard.State())
	assert.False(tb.sessions.HasCredentials(context.Background()))

	require.NoError(tb.guard.Start(context.Background()))
	assert.Equal(StateNoSession, tb.guard.State())
	assert.Zero(tb.backend.calls.Load())
}
