package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	env := map[string]any{"success": status < 400 && errMsg == ""}
	if data != nil {
		env["data"] = data
	}
	if errMsg != "" {
		env["error"] = errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func staticToken(token string) TokenSource {
	return TokenFunc(func(context.Context) string { return token })
}

func TestClient_AttachesTokenAndDecodes(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		assert.Equal("/api/auth/me", r.URL.Path)
		writeEnvelope(w, http.StatusOK, model.SessionUser{ID: "1", RoleName: model.RoleAdmin}, "")
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", WithTokenSource(staticToken("tok")))
	me, err := c.Me(context.Background())
	require.NoError(err)

	assert.Equal("Bearer tok", gotAuth)
	assert.Len(gotRequestID, 36)
	assert.Equal("1", me.ID)
	assert.Equal(model.RoleAdmin, me.RoleName)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var hadAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		writeEnvelope(w, http.StatusOK, nil, "")
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Logout(context.Background()))
	assert.False(t, hadAuth)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		kind   Kind
	}{
		{"401", http.StatusUnauthorized, "", KindAuth},
		{"unauthorized message", http.StatusForbidden, "Unauthorized", KindAuth},
		{"auth required message", http.StatusBadRequest, "Authentication required", KindAuth},
		{"invalid token message", http.StatusOK, "Invalid or expired token", KindAuth},
		{"business", http.StatusBadRequest, "feature not available", KindBusiness},
		{"not found", http.StatusNotFound, "user not found", KindBusiness},
		{"500", http.StatusInternalServerError, "boom", KindTransport},
		{"503", http.StatusServiceUnavailable, "", KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeEnvelope(w, tt.status, nil, tt.msg)
			}))
			defer srv.Close()

			_, err := New(srv.URL).Stats(context.Background())
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.kind == KindAuth, IsAuth(err))
			assert.Equal(t, tt.kind == KindTransport, IsTransport(err))
		})
	}
}

func TestClient_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsAuth(err))
}

func TestClient_TimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(20*time.Millisecond)).Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestClient_BreakerOpensOnTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadGateway, nil, "down")
	}))
	defer srv.Close()

	c := New(srv.URL, WithBreaker(BreakerSettings{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}))
	for i := 0; i < 5; i++ {
		_, err := c.Stats(context.Background())
		assert.True(t, IsTransport(err))
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusBadRequest, nil, "nope")
	}))
	defer srv.Close()

	c := New(srv.URL, WithBreaker(BreakerSettings{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}))
	for i := 0; i < 5; i++ {
		_, err := c.Stats(context.Background())
		require.Error(t, err)
	}
	assert.EqualValues(t, 5, calls.Load())
}

func TestClient_ListUsersEncodesQuery(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("2", r.URL.Query().Get("page"))
		assert.Equal("20", r.URL.Query().Get("limit"))
		assert.Equal("MODERATOR", r.URL.Query().Get("role"))
		assert.False(r.URL.Query().Has("search"))
		writeEnvelope(w, http.StatusOK, model.Page[model.User]{
			Items: []model.User{{ID: "u1", Name: "Ann"}},
			Total: 21,
		}, "")
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListUsers(context.Background(), UserFilter{
		ListOptions: ListOptions{Page: 2, Limit: 20},
		Role:        model.RoleModerator,
	})
	require.NoError(err)
	assert.Equal(21, page.Total)
	require.Len(page.Items, 1)
	assert.Equal("Ann", page.Items[0].Name)
}

func TestClient_LoginBuildsSession(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		assert.NoError(json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal("a@b.c", creds.Email)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"token": "jwt",
			"user":  map[string]any{"id": "1", "roleName": "ADMIN"},
		}, "")
	}))
	defer srv.Close()

	s, err := New(srv.URL).Login(context.Background(), model.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(err)
	assert.Equal("jwt", s.Token)
	assert.True(s.IsLoggedIn)
	assert.Equal(model.RoleAdmin, s.User.RoleName)
}

func TestClient_MalformedBodyIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Stats(context.Background())
	assert.True(t, IsTransport(err))
}

func TestIsAuth_PlainErrors(t *testing.T) {
	assert.True(t, IsAuth(errors.New("Unauthorized")))
	assert.True(t, IsAuth(errors.New("request failed: Invalid token")))
	assert.False(t, IsAuth(errors.New("connection reset by peer")))
	assert.False(t, IsAuth(nil))
}
