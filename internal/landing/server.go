package landing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ghaggin/datingadmin/internal/config"
	tmpl "github.com/ghaggin/datingadmin/internal/template"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const langCookie = "lang"

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(RegisterHooks),
)

type Server struct {
	log         *zap.Logger
	downloadURL string
	handler     http.Handler
	server      *http.Server
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config *config.Config
}

func New(p Params) *Server {
	s := &Server{
		log:         p.Log,
		downloadURL: p.Config.Landing.DownloadURL,
	}

	root := chi.NewRouter()
	root.Use(chimw.RealIP)
	root.Use(chimw.Recoverer)
	root.Get("/", s.home)
	root.Get("/privacy", s.privacy)
	root.Get("/terms", s.terms)
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	s.handler = root
	s.server = &http.Server{
		Addr:    p.Config.Landing.Addr(),
		Handler: root,
	}
	return s
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
			s.log.Error("landing server stopped", zap.Error(err))
		}
	}()
	s.log.Info("landing page listening", zap.String("addr", s.server.Addr))
	return nil
}

type legalPage struct {
	Heading string
	Body    string
}

// pickLanguage picks the page language and remembers an explicit ?lang= choice.
func pickLanguage(w http.ResponseWriter, r *http.Request) string {
	var cookie string
	if c, err := r.Cookie(langCookie); err == nil {
		cookie = c.Value
	}

	query := r.URL.Query().Get("lang")
	lang := negotiate(query, cookie, r.Header.Get("Accept-Language"))
	if query != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     langCookie,
			Value:    lang,
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			SameSite: http.SameSiteLaxMode,
		})
	}
	return lang
}

func footer(text copyText) []tmpl.NavItem {
	return []tmpl.NavItem{
		{Path: "/privacy", Label: text.Privacy},
		{Path: "/terms", Label: text.Terms},
	}
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	lang := pickLanguage(w, r)
	text := texts[lang]
	text.DownloadURL = s.downloadURL

	s.render(w, "landing.html", &tmpl.Data{
		PageTitle: text.Title,
		Lang:      lang,
		Nav:       footer(text),
		Content:   text,
	})
}

func (s *Server) privacy(w http.ResponseWriter, r *http.Request) {
	lang := pickLanguage(w, r)
	text := texts[lang]
	s.legal(w, lang, text, legalPage{Heading: text.Privacy, Body: text.PrivacyBody})
}

func (s *Server) terms(w http.ResponseWriter, r *http.Request) {
	lang := pickLanguage(w, r)
	text := texts[lang]
	s.legal(w, lang, text, legalPage{Heading: text.Terms, Body: text.TermsBody})
}

func (s *Server) legal(w http.ResponseWriter, lang string, text copyText, page legalPage) {
	s.render(w, "legal.html", &tmpl.Data{
		PageTitle: text.Title + " | " + page.Heading,
		Lang:      lang,
		Nav:       footer(text),
		Content:   page,
	})
}

func (s *Server) render(w http.ResponseWriter, page string, data *tmpl.Data) {
	if err := tmpl.Render(w, page, data); err != nil {
		s.log.Error("rendering landing page", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
