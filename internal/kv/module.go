package kv

import (
	"context"
	"fmt"

	"github.com/ghaggin/datingadmin/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(New),
)

type Params struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

// New opens the store selected by the config and closes it when the
// application stops.
func New(p Params) (Store, error) {
	var (
		store   Store
		cleanup func() error
	)

	switch p.Config.Store.Driver {
	case "", "memory":
		store = NewMemory()
	case "file":
		f, err := OpenFile(p.Config.Store.Path, p.Log)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		store = f
	case "redis":
		rc := p.Config.Store.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis: failed to ping server: %w", err)
		}
		store = NewRedis(client, rc.Prefix, p.Log)
		cleanup = client.Close
	default:
		return nil, fmt.Errorf("unknown store driver %q", p.Config.Store.Driver)
	}

	p.Log.Info("session store ready", zap.String("driver", p.Config.Store.Driver))

	p.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			err := store.Close()
			if cleanup != nil {
				if cerr := cleanup(); err == nil {
					err = cerr
				}
			}
			return err
		},
	})

	return store, nil
}
