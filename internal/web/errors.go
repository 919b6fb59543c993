package web

import (
	"errors"
	"net/http"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/guard"
	tmpl "github.com/ghaggin/datingadmin/internal/template"
	"go.uber.org/zap"
)

var errInvalidForm = errors.New("invalid form")

// renderError shows a failed backend call inside the page. An auth
// failure ends the session and redirects. A 401 has usually been handled
// by the client's hook already, but an auth message under another status
// has not, and ForceLogout ignores a session that is already gone.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, page string, data *tmpl.Data, err error) {
	if apiclient.IsAuth(err) {
		s.guard.ForceLogout(r.Context(), guard.CauseUnauthorized)
		http.Redirect(w, r, s.cfg.Admin.LoginPath, http.StatusSeeOther)
		return
	}

	status := http.StatusBadRequest
	var apiErr *apiclient.Error
	switch {
	case apiclient.IsTransport(err):
		status = http.StatusBadGateway
		data.Error = "The server could not be reached."
		data.Retry = r.URL.RequestURI()
	case errors.As(err, &apiErr) && apiErr.Message != "":
		data.Error = apiErr.Message
	case errors.Is(err, errInvalidForm):
		data.Error = "Please check the form and try again."
	default:
		status = http.StatusInternalServerError
		data.Error = "Something went wrong."
	}

	s.log.Warn("backend call failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	s.render(w, status, page, data)
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data *tmpl.Data) {
	if err := tmpl.RenderStatus(w, status, page, data); err != nil {
		s.log.Error("rendering page", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
