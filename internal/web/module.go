package web

import (
	"context"

	"github.com/ghaggin/datingadmin/internal/apiclient"
	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/ghaggin/datingadmin/internal/guard"
	"github.com/ghaggin/datingadmin/internal/kv"
	"github.com/ghaggin/datingadmin/internal/middleware"
	"github.com/ghaggin/datingadmin/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(
		NewRegistry,
		NewBroker,
		NewClient,
		middleware.NewSessionManager,
		New,
		func(b *Broker) guard.Navigator { return b },
		func(c *apiclient.Client) API { return c },
		func(g *guard.Guard) Guard { return g },
	),
	fx.Invoke(RegisterHooks),
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

type ClientParams struct {
	fx.In

	Config *config.Config
	Store  kv.Store
	Guard  *guard.Guard
	Log    *zap.Logger
}

// NewClient builds the client the pages use. Any 401 it receives outside
// the auth endpoints ends the session.
func NewClient(p ClientParams) *apiclient.Client {
	return apiclient.New(p.Config.Backend.BaseURL, session.ClientOptions(p.Config, p.Log,
		apiclient.WithTokenSource(session.StoreTokens(p.Store)),
		apiclient.WithResponseHook(apiclient.NewUnauthorizedHook(func(ctx context.Context) {
			p.Guard.ForceLogout(ctx, guard.CauseUnauthorized)
		})),
	)...)
}
