package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ghaggin/datingadmin/internal/config"
)

const (
	flashKey    = "flash"
	returnToKey = "return_to"
)

// SessionManager holds per-browser state that must not live in the shared
// console store: flash messages and the page to return to after login.
type SessionManager struct {
	impl *scs.SessionManager
}

func NewSessionManager(cfg *config.Config) (*SessionManager, error) {
	sm := &SessionManager{}
	sm.impl = scs.New()
	sm.impl.Lifetime = 12 * time.Hour
	sm.impl.Cookie.Name = "console_session"
	sm.impl.Cookie.HttpOnly = true
	sm.impl.Cookie.SameSite = http.SameSiteLaxMode
	if cfg != nil {
		sm.impl.Cookie.Secure = cfg.Admin.CookieSecure
	}

	return sm, nil
}

func (s *SessionManager) Wrap(next http.Handler) http.Handler {
	return s.impl.LoadAndSave(next)
}

func (s *SessionManager) PutFlash(ctx context.Context, msg string) {
	s.impl.Put(ctx, flashKey, msg)
}

func (s *SessionManager) PopFlash(ctx context.Context) string {
	return s.impl.PopString(ctx, flashKey)
}

func (s *SessionManager) PutReturnTo(ctx context.Context, path string) {
	s.impl.Put(ctx, returnToKey, path)
}

// PopReturnTo returns the remembered path, or fallback when there is none.
func (s *SessionManager) PopReturnTo(ctx context.Context, fallback string) string {
	if p := s.impl.PopString(ctx, returnToKey); p != "" {
		return p
	}
	return fallback
}

// RenewToken rotates the browser session id; call it on login and logout.
func (s *SessionManager) RenewToken(ctx context.Context) error {
	return s.impl.RenewToken(ctx)
}
