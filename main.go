package main

import (
	"flag"

	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/ghaggin/datingadmin/internal/guard"
	"github.com/ghaggin/datingadmin/internal/kv"
	"github.com/ghaggin/datingadmin/internal/landing"
	"github.com/ghaggin/datingadmin/internal/session"
	"github.com/ghaggin/datingadmin/internal/web"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	var (
		mode    = flag.String("mode", "", "either landing or admin")
		cfgPath = flag.String("config", "", "path to the config file")
	)
	flag.Parse()

	newPath := func() config.Path {
		return config.Path(*cfgPath)
	}

	deps := fx.Options(
		fx.Provide(
			newLogger,
			config.New,
			newPath,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	var app *fx.App
	if *mode == "landing" {
		app = fx.New(
			deps,
			landing.Module,
		)
	} else if *mode == "admin" {
		app = fx.New(
			deps,
			kv.Module,
			session.Module,
			guard.Module,
			web.Module,
		)
	} else {
		panic("unrecognized mode")
	}

	app.Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == config.EnvLocal {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
