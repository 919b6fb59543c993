// Package apiclient talks to the platform backend. Every call goes through
// one path that attaches the bearer token, runs the response hooks and
// folds all failures into *Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ghaggin/datingadmin/internal/model"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	maxBodySize = 4 << 20

	headerRequestID = "X-Request-Id"
)

var (
	errServerStatus = errors.New("server error status")
)

// TokenSource yields the current bearer token, or "" when logged out.
type TokenSource interface {
	Token(ctx context.Context) string
}

type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	hooks   []ResponseHook
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithResponseHook(h ResponseHook) Option {
	return func(c *Client) { c.hooks = append(c.hooks, h) }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) { c.breaker = newBreaker(c.baseURL, s) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  TokenFunc(func(context.Context) string { return "" }),
		log:     zap.NewNop(),
	}
	c.breaker = newBreaker(c.baseURL, BreakerSettings{})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newBreaker trips on transport failures only. A 4xx is the backend
// working as intended.
func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

func (c *Client) get(ctx context.Context, path string, params any, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, params any, body any, out any) error {
	target := c.baseURL + path
	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return &Error{Kind: KindBusiness, Message: "invalid query", Err: err}
		}
		if enc := v.Encode(); enc != "" {
			target += "?" + enc
		}
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindBusiness, Message: "invalid request body", Err: err}
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return &Error{Kind: KindBusiness, Message: "invalid request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if token := c.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	resp, _ := res.(*http.Response)
	if err != nil && !errors.Is(err, errServerStatus) {
		c.log.Debug("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return &Error{Kind: KindTransport, Message: "backend unreachable", Err: err}
	}
	defer resp.Body.Close()

	for _, h := range c.hooks {
		h(req, resp)
	}

	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "reading response", Err: err}
	}

	var env model.Envelope
	envErr := json.Unmarshal(raw, &env)

	message := env.Error
	if message == "" && resp.StatusCode >= http.StatusBadRequest {
		message = strings.TrimSpace(string(raw))
		if envErr == nil || message == "" {
			message = http.StatusText(resp.StatusCode)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &Error{Kind: KindAuth, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= http.StatusBadRequest, envErr == nil && !env.Success:
		kind := KindBusiness
		if IsAuthMessage(message) {
			kind = KindAuth
		}
		return &Error{Kind: kind, Status: resp.StatusCode, Message: message}
	case envErr != nil:
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "malformed response", Err: envErr}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "malformed response data", Err: err}
	}
	return nil
}
