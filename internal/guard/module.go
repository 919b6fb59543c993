package guard

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(
		New,
		NewMetrics,
	),
	fx.Invoke(RegisterHooks),
)

// RegisterHooks starts the guard with the application and tears it down
// on stop.
func RegisterHooks(lc fx.Lifecycle, g *Guard) {
	lc.Append(fx.Hook{
		OnStart: g.Start,
		OnStop:  g.OnStop,
	})
}
