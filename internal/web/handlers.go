package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/middleware"
	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/ghaggin/datingadmin/internal/session"
	tmpl "github.com/ghaggin/datingadmin/internal/template"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const pageSize = 20

type usersContent struct {
	Search string
	Page   *model.Page[model.User]
}

type settingsContent struct {
	model.Preferences
	Languages []string
}

// data builds the page frame for the signed-in user.
func (s *Server) data(r *http.Request, title string) *tmpl.Data {
	prefs := s.sessions.Preferences(r.Context())
	d := &tmpl.Data{
		PageTitle: title,
		Lang:      prefs.Language,
		Theme:     prefs.Theme,
		Flash:     s.flash.PopFlash(r.Context()),
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		return d
	}
	d.User = &sess.User
	for _, pg := range pages {
		if pg.roles != nil && !hasRole(pg.roles, sess.User.RoleName) {
			continue
		}
		d.Nav = append(d.Nav, tmpl.NavItem{
			Path:   pg.path,
			Label:  pg.label,
			Active: strings.HasPrefix(r.URL.Path, pg.path),
		})
	}
	return d
}

func hasRole(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func listOptions(r *http.Request) apiclient.ListOptions {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if p < 1 {
		p = 1
	}
	return apiclient.ListOptions{
		Page:   p,
		Limit:  pageSize,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
}

// done finishes a form post: flash msg and go back to path.
func (s *Server) done(w http.ResponseWriter, r *http.Request, path, msg string) {
	s.flash.PutFlash(r.Context(), msg)
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if sess, _ := s.sessions.GetCurrentUser(r.Context()); sess != nil {
		http.Redirect(w, r, s.cfg.Admin.LandingPath, http.StatusSeeOther)
		return
	}

	d := s.data(r, "Sign in")
	s.render(w, http.StatusOK, "login.html", d)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := s.data(r, "Sign in")

	if err := r.ParseForm(); err != nil {
		d.Error = "Please check the form and try again."
		s.render(w, http.StatusBadRequest, "login.html", d)
		return
	}
	creds := model.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	d.Content = creds.Email

	sess, err := s.sessions.Login(ctx, creds)
	switch {
	case err == nil:
	case apiclient.IsAuth(err):
		d.Error = "Invalid email or password."
		s.render(w, http.StatusUnauthorized, "login.html", d)
		return
	case apiclient.IsTransport(err):
		d.Error = "The server could not be reached."
		d.Retry = s.cfg.Admin.LoginPath
		s.render(w, http.StatusBadGateway, "login.html", d)
		return
	default:
		s.log.Info("login refused", zap.Error(err))
		d.Error = "Sign in failed."
		if msg := errMessage(err); msg != "" {
			d.Error = msg
		}
		s.render(w, http.StatusBadRequest, "login.html", d)
		return
	}

	if !sess.User.RoleName.Staff() {
		s.log.Info("non-staff login rejected", zap.String("user_id", sess.User.ID))
		if err := s.sessions.Logout(ctx); err != nil {
			s.log.Error("clearing rejected session", zap.Error(err))
		}
		d.Error = "This account cannot access the console."
		s.render(w, http.StatusForbidden, "login.html", d)
		return
	}

	if err := s.flash.RenewToken(ctx); err != nil {
		s.log.Warn("renewing browser session", zap.Error(err))
	}
	if err := s.guard.Start(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("starting session guard", zap.Error(err))
	}

	http.Redirect(w, r, s.flash.PopReturnTo(ctx, s.cfg.Admin.LandingPath), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.guard.Stop()
	if err := s.sessions.Logout(ctx); err != nil {
		s.log.Error("logout", zap.Error(err))
	}
	if err := s.flash.RenewToken(ctx); err != nil {
		s.log.Warn("renewing browser session", zap.Error(err))
	}

	s.done(w, r, s.cfg.Admin.LoginPath, "You have been signed out.")
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Dashboard")

	stats, err := s.api.Stats(r.Context())
	if err != nil {
		s.renderError(w, r, "dashboard.html", d, err)
		return
	}
	d.Content = stats
	s.render(w, http.StatusOK, "dashboard.html", d)
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Users")
	opts := listOptions(r)
	content := usersContent{Search: opts.Search}
	d.Content = content

	page, err := s.api.ListUsers(r.Context(), apiclient.UserFilter{
		ListOptions: opts,
		Status:      r.URL.Query().Get("status"),
	})
	if err != nil {
		s.renderError(w, r, "users.html", d, err)
		return
	}
	content.Page = page
	d.Content = content
	s.render(w, http.StatusOK, "users.html", d)
}

func (s *Server) setUserStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := r.PostFormValue("status")
	if status != "active" && status != "banned" {
		s.renderError(w, r, "users.html", s.data(r, "Users"), errInvalidForm)
		return
	}

	if _, err := s.api.UpdateUser(r.Context(), id, model.UserUpdate{Status: &status}); err != nil {
		s.renderError(w, r, "users.html", s.data(r, "Users"), err)
		return
	}
	s.done(w, r, "/users", fmt.Sprintf("User is now %s.", status))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.renderError(w, r, "users.html", s.data(r, "Users"), err)
		return
	}
	s.done(w, r, "/users", "User deleted.")
}

func (s *Server) moderators(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Moderators")

	page, err := s.api.ListModerators(r.Context(), listOptions(r))
	if err != nil {
		s.renderError(w, r, "moderators.html", d, err)
		return
	}
	d.Content = page
	s.render(w, http.StatusOK, "moderators.html", d)
}

func (s *Server) createModerator(w http.ResponseWriter, r *http.Request) {
	u := model.NewUser{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if u.Name == "" || u.Email == "" || u.Password == "" {
		s.renderError(w, r, "moderators.html", s.data(r, "Moderators"), errInvalidForm)
		return
	}

	if _, err := s.api.CreateModerator(r.Context(), u); err != nil {
		s.renderError(w, r, "moderators.html", s.data(r, "Moderators"), err)
		return
	}
	s.done(w, r, "/moderators", "Moderator added.")
}

func (s *Server) deleteModerator(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteModerator(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.renderError(w, r, "moderators.html", s.data(r, "Moderators"), err)
		return
	}
	s.done(w, r, "/moderators", "Moderator removed.")
}

func (s *Server) reports(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Reports")

	status := r.URL.Query().Get("status")
	if status == "" {
		status = "pending"
	}
	page, err := s.api.ListReports(r.Context(), apiclient.ReportFilter{
		ListOptions: listOptions(r),
		Status:      status,
	})
	if err != nil {
		s.renderError(w, r, "reports.html", d, err)
		return
	}
	d.Content = page
	s.render(w, http.StatusOK, "reports.html", d)
}

func (s *Server) resolveReport(w http.ResponseWriter, r *http.Request) {
	res := model.Resolution{
		Action: r.PostFormValue("action"),
		Note:   strings.TrimSpace(r.PostFormValue("note")),
	}
	if res.Action == "" {
		s.renderError(w, r, "reports.html", s.data(r, "Reports"), errInvalidForm)
		return
	}

	if _, err := s.api.ResolveReport(r.Context(), chi.URLParam(r, "id"), res); err != nil {
		s.renderError(w, r, "reports.html", s.data(r, "Reports"), err)
		return
	}
	s.done(w, r, "/reports", "Report resolved.")
}

func (s *Server) subscriptions(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Subscriptions")

	page, err := s.api.ListSubscriptions(r.Context(), apiclient.SubscriptionFilter{
		ListOptions: listOptions(r),
		Status:      r.URL.Query().Get("status"),
	})
	if err != nil {
		s.renderError(w, r, "subscriptions.html", d, err)
		return
	}
	d.Content = page
	s.render(w, http.StatusOK, "subscriptions.html", d)
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	d := s.data(r, "Settings")
	d.Content = settingsContent{
		Preferences: s.sessions.Preferences(r.Context()),
		Languages:   languageCodes(),
	}
	s.render(w, http.StatusOK, "settings.html", d)
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	p := model.Preferences{
		Language:         r.PostFormValue("language"),
		Theme:            r.PostFormValue("theme"),
		FontSize:         r.PostFormValue("fontSize"),
		AccentColor:      r.PostFormValue("accentColor"),
		SidebarCollapsed: r.PostFormValue("sidebarCollapsed") == "true",
	}

	if _, err := s.sessions.SetPreferences(r.Context(), p); err != nil {
		s.renderError(w, r, "settings.html", s.data(r, "Settings"), err)
		return
	}
	s.done(w, r, "/settings", "Settings saved.")
}

func languageCodes() []string {
	codes := make([]string, 0, len(session.Languages))
	for _, t := range session.Languages {
		base, _ := t.Base()
		codes = append(codes, base.String())
	}
	return codes
}

func errMessage(err error) string {
	var e *apiclient.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
