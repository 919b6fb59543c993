package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/ghaggin/datingadmin/internal/model"
	"go.uber.org/zap"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

// Sessions reads the console session for the route guards.
type Sessions interface {
	GetCurrentUser(ctx context.Context) (*model.Session, error)
}

const redirectingPage = `<!DOCTYPE html><html><body><p>Redirecting&hellip;</p></body></html>`

// RequireSession lets a request through only when a console session
// exists, and puts that session in the request context. Otherwise it
// remembers the page and redirects to loginPath.
//
// This only decides what the console renders. The backend authorizes
// every call on its own and is the actual gate.
func RequireSession(sessions Sessions, flash *SessionManager, loginPath string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.GetCurrentUser(r.Context())
			if err != nil {
				log.Error("reading session", zap.Error(err))
			}
			if s == nil {
				if flash != nil && r.Method == http.MethodGet {
					flash.PutReturnTo(r.Context(), r.URL.RequestURI())
				}
				redirect(w, r, loginPath)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey, s)))
		})
	}
}

// RequireRole sends users whose role is not in roles to landingPath. Use
// behind RequireSession. Like RequireSession it is not a security
// boundary.
func RequireRole(landingPath string, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if s == nil || !slices.Contains(roles, s.User.RoleName) {
				redirect(w, r, landingPath)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionCtxKey).(*model.Session)
	return s
}

func redirect(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Location", path)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusSeeOther)
	_, _ = w.Write([]byte(redirectingPage))
}
