package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/ghaggin/datingadmin/internal/middleware"
	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/ghaggin/datingadmin/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// API is the slice of the platform API the console pages use.
type API interface {
	Stats(ctx context.Context) (*model.Stats, error)
	ListUsers(ctx context.Context, f apiclient.UserFilter) (*model.Page[model.User], error)
	UpdateUser(ctx context.Context, id string, u model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListModerators(ctx context.Context, opts apiclient.ListOptions) (*model.Page[model.Moderator], error)
	CreateModerator(ctx context.Context, u model.NewUser) (*model.Moderator, error)
	DeleteModerator(ctx context.Context, id string) error
	ListReports(ctx context.Context, f apiclient.ReportFilter) (*model.Page[model.Report], error)
	ResolveReport(ctx context.Context, id string, r model.Resolution) (*model.Report, error)
	ListSubscriptions(ctx context.Context, f apiclient.SubscriptionFilter) (*model.Page[model.Subscription], error)
}

// Guard is the liveness guard as seen by the pages.
type Guard interface {
	Start(ctx context.Context) error
	Stop()
	ForceLogout(ctx context.Context, cause string) bool
}

type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	api      API
	sessions *session.Manager
	guard    Guard
	broker   *Broker
	flash    *middleware.SessionManager
	handler  http.Handler
	server   *http.Server
}

type Params struct {
	fx.In

	Config   *config.Config
	Log      *zap.Logger
	API      API
	Sessions *session.Manager
	Guard    Guard
	Broker   *Broker
	Flash    *middleware.SessionManager
	Registry *prometheus.Registry `optional:"true"`
}

type page struct {
	path  string
	label string
	roles []model.Role
}

var staff = []model.Role{model.RoleAdmin, model.RoleModerator}

var pages = []page{
	{"/dashboard", "Dashboard", nil},
	{"/users", "Users", staff},
	{"/moderators", "Moderators", []model.Role{model.RoleAdmin}},
	{"/reports", "Reports", staff},
	{"/subscriptions", "Subscriptions", []model.Role{model.RoleAdmin}},
	{"/settings", "Settings", nil},
}

func New(p Params) *Server {
	s := &Server{
		cfg:      p.Config,
		log:      p.Log,
		api:      p.API,
		sessions: p.Sessions,
		guard:    p.Guard,
		broker:   p.Broker,
		flash:    p.Flash,
	}

	root := chi.NewRouter()
	root.Use(chimw.RealIP)
	root.Use(chimw.Recoverer)
	root.Use(s.flash.Wrap)

	handlers := map[string]func(chi.Router){
		"/dashboard": func(r chi.Router) {
			r.Get("/dashboard", s.dashboard)
		},
		"/users": func(r chi.Router) {
			r.Get("/users", s.users)
			r.Post("/users/{id}/status", s.setUserStatus)
			r.Post("/users/{id}/delete", s.deleteUser)
		},
		"/moderators": func(r chi.Router) {
			r.Get("/moderators", s.moderators)
			r.Post("/moderators", s.createModerator)
			r.Post("/moderators/{id}/delete", s.deleteModerator)
		},
		"/reports": func(r chi.Router) {
			r.Get("/reports", s.reports)
			r.Post("/reports/{id}/resolve", s.resolveReport)
		},
		"/subscriptions": func(r chi.Router) {
			r.Get("/subscriptions", s.subscriptions)
		},
		"/settings": func(r chi.Router) {
			r.Get("/settings", s.settings)
			r.Post("/settings", s.saveSettings)
		},
	}

	// Auth
	root.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions, s.flash, s.cfg.Admin.LoginPath, s.log))
		r.Use(s.watchSession)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, s.cfg.Admin.LandingPath, http.StatusSeeOther)
		})
		r.Get("/events", s.broker.ServeHTTP)

		for _, pg := range pages {
			r.Group(func(r chi.Router) {
				if pg.roles != nil {
					r.Use(middleware.RequireRole(s.cfg.Admin.LandingPath, pg.roles...))
				}
				handlers[pg.path](r)
			})
		}
	})

	// No Auth
	root.Group(func(r chi.Router) {
		r.Get(s.cfg.Admin.LoginPath, s.loginPage)
		r.Post(s.cfg.Admin.LoginPath, s.login)
		r.Post("/logout", s.logout)
		if p.Registry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
		}
	})

	s.handler = root
	s.server = &http.Server{
		Addr:    s.cfg.Admin.Addr(),
		Handler: root,
	}
	return s
}

// watchSession starts the guard for a session this console did not log
// in itself, such as one created by another console sharing the store.
// Start does nothing while the guard already runs.
func (s *Server) watchSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.guard.Start(context.WithoutCancel(r.Context())); err != nil {
			s.log.Error("starting session guard", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func RegisterHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Server) Start(_ context.Context) error {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("admin server stopped", zap.Error(err))
		}
	}()
	s.log.Info("admin console listening", zap.String("addr", s.server.Addr))
	return nil
}
