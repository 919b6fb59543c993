package session

import (
	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/ghaggin/datingadmin/internal/kv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(
		NewBackend,
		New,
	),
)

type BackendParams struct {
	fx.In

	Config *config.Config
	Store  kv.Store
	Log    *zap.Logger
}

// NewBackend builds the client used for login, logout and the liveness
// check. It carries no response hooks: its callers handle auth failures
// themselves.
func NewBackend(p BackendParams) Backend {
	return apiclient.New(p.Config.Backend.BaseURL, ClientOptions(p.Config, p.Log,
		apiclient.WithTokenSource(StoreTokens(p.Store)),
	)...)
}

// ClientOptions are the options shared by every backend client.
func ClientOptions(cfg *config.Config, log *zap.Logger, extra ...apiclient.Option) []apiclient.Option {
	b := cfg.Backend.Breaker
	opts := []apiclient.Option{
		apiclient.WithTimeout(cfg.Backend.Timeout),
		apiclient.WithLogger(log),
		apiclient.WithBreaker(apiclient.BreakerSettings{
			MaxRequests:  b.MaxRequests,
			Interval:     b.Interval,
			Timeout:      b.Timeout,
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
		}),
	}
	return append(opts, extra...)
}
