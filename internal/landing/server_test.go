package landing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newServer() *Server {
	return New(Params{
		Log:    zap.NewNop(),
		Config: &config.Config{Landing: config.Landing{Host: "localhost", Port: 0, DownloadURL: "https://example.com/app"}},
	})
}

func Test_negotiate(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"nothing", nil, "en"},
		{"query wins", []string{"de", "fr", "es"}, "de"},
		{"unsupported query falls through", []string{"ja", "fr"}, "fr"},
		{"regional variant", []string{"es-MX"}, "es"},
		{"accept-language header", []string{"", "", "pt-BR,fr;q=0.8,en;q=0.5"}, "fr"},
		{"garbage", []string{"!!", ""}, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, negotiate(tt.candidates...))
		})
	}
}

func TestServer_Home(t *testing.T) {
	assert := assert.New(t)
	s := newServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	s.ServeHTTP(rr, req)

	assert.Equal(http.StatusOK, rr.Code)
	assert.Contains(rr.Body.String(), `<html lang="de"`)
	assert.Contains(rr.Body.String(), "Lerne Menschen kennen")
	assert.Contains(rr.Body.String(), `href="https://example.com/app"`)
	assert.Empty(rr.Result().Cookies())
}

func TestServer_HomeRemembersQueryLanguage(t *testing.T) {
	assert := assert.New(t)
	s := newServer()

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest("GET", "/?lang=es", nil))
	assert.Contains(rr.Body.String(), "Conoce a gente")

	cookies := rr.Result().Cookies()
	if assert.Len(cookies, 1) {
		assert.Equal("lang", cookies[0].Name)
		assert.Equal("es", cookies[0].Value)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	req.Header.Set("Accept-Language", "fr")
	s.ServeHTTP(rr, req)
	assert.Contains(rr.Body.String(), "Conoce a gente")
}

func TestServer_Healthz(t *testing.T) {
	rr := httptest.NewRecorder()
	newServer().ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestServer_LegalPages(t *testing.T) {
	tests := []struct {
		path string
		lang string
		want string
	}{
		{"/privacy", "en", "We never sell your data"},
		{"/terms", "en", "18 or older"},
		{"/privacy", "de", "<h1>Datenschutz</h1>"},
		{"/terms", "fr", "<h1>Conditions</h1>"},
	}

	s := newServer()
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.lang, func(t *testing.T) {
			rr := httptest.NewRecorder()
			s.ServeHTTP(rr, httptest.NewRequest("GET", tt.path+"?lang="+tt.lang, nil))
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
}

func TestServer_FooterLinksResolve(t *testing.T) {
	s := newServer()
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	for _, path := range []string{"/privacy", "/terms"} {
		assert.Contains(t, rr.Body.String(), `href="`+path+`"`)

		page := httptest.NewRecorder()
		s.ServeHTTP(page, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, page.Code, path)
	}
}
