// Package session owns the console's login state. The Manager is the only
// writer of the persisted auth keys; everything else reads through it.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/kv"
	"github.com/ghaggin/datingadmin/internal/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	KeyLoggedIn = "isLoggedIn"
	KeyToken    = "authToken"
	KeyUser     = "user"
)

var authKeys = []string{KeyLoggedIn, KeyToken, KeyUser}

// Backend is the part of the platform API the session depends on.
type Backend interface {
	Login(ctx context.Context, creds model.Credentials) (*model.Session, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.SessionUser, error)
}

type Manager struct {
	store   kv.Store
	backend Backend
	log     *zap.Logger
}

type Params struct {
	fx.In

	Store   kv.Store
	Backend Backend
	Log     *zap.Logger
}

func New(p Params) *Manager {
	return &Manager{
		store:   p.Store,
		backend: p.Backend,
		log:     p.Log,
	}
}

// GetCurrentUser returns nil without error when nobody is logged in or the
// persisted session is unreadable.
func (m *Manager) GetCurrentUser(ctx context.Context) (*model.Session, error) {
	vals, err := m.store.GetMany(ctx, authKeys...)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	token := vals[KeyToken]
	if token == "" || vals[KeyLoggedIn] != "true" {
		return nil, nil
	}

	var user model.SessionUser
	if err := json.Unmarshal([]byte(vals[KeyUser]), &user); err != nil {
		m.log.Warn("discarding malformed persisted user", zap.Error(err))
		return nil, nil
	}

	return &model.Session{
		Token:      token,
		User:       user,
		IsLoggedIn: true,
	}, nil
}

// SetSession writes token, user and flag in one store write.
func (m *Manager) SetSession(ctx context.Context, s *model.Session) error {
	if s == nil || s.Token == "" {
		return fmt.Errorf("session without token")
	}

	user, err := json.Marshal(s.User)
	if err != nil {
		return err
	}

	return m.store.SetMany(ctx, map[string]string{
		KeyToken:    s.Token,
		KeyUser:     string(user),
		KeyLoggedIn: "true",
	})
}

// ClearAllAuthData removes every auth key. Calling it on an empty store is
// a no-op.
func (m *Manager) ClearAllAuthData(ctx context.Context) error {
	return m.store.Delete(ctx, authKeys...)
}

// Logout tells the backend, then clears local state whatever the backend
// said.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Token(ctx) != "" {
		if err := m.backend.Logout(ctx); err != nil {
			m.log.Warn("backend logout failed, clearing session anyway", zap.Error(err))
		}
	}

	return m.ClearAllAuthData(ctx)
}

func (m *Manager) Login(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	s, err := m.backend.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	if err := m.SetSession(ctx, s); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	m.log.Info("logged in",
		zap.String("user_id", s.User.ID),
		zap.String("role", string(s.User.RoleName)),
	)
	return s, nil
}

func (m *Manager) Token(ctx context.Context) string {
	return StoreTokens(m.store).Token(ctx)
}

// HasCredentials reports whether a token or the logged-in flag is present.
func (m *Manager) HasCredentials(ctx context.Context) bool {
	vals, err := m.store.GetMany(ctx, KeyToken, KeyLoggedIn)
	if err != nil {
		return false
	}
	return vals[KeyToken] != "" || vals[KeyLoggedIn] == "true"
}

func (m *Manager) Watch(ctx context.Context) (<-chan kv.Change, error) {
	return m.store.Watch(ctx)
}

// StoreTokens reads the bearer token straight from the store, for clients
// that have to exist before the Manager does.
func StoreTokens(store kv.Store) apiclient.TokenFunc {
	return func(ctx context.Context) string {
		v, _, err := store.Get(ctx, KeyToken)
		if err != nil {
			return ""
		}
		return v
	}
}

// EndsSession reports whether a change made elsewhere logged this console
// out.
func EndsSession(c kv.Change) bool {
	switch c.Key {
	case KeyToken:
		return c.Deleted || c.Value == ""
	case KeyLoggedIn:
		return c.Deleted || c.Value != "true"
	}
	return false
}
