package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis shares the store between consoles on different hosts. Each
// mutation is published on "<prefix>:changes" inside the same MULTI as the
// write itself.
type Redis struct {
	client *redis.Client
	prefix string
	origin string
	log    *zap.Logger
}

type redisChange struct {
	Origin string `json:"origin"`
	Change
}

func NewRedis(client *redis.Client, prefix string, log *zap.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		log:    log,
	}
}

// Handle returns a second store over the same keys whose Watch reports the
// writes of this one.
func (r *Redis) Handle() *Redis {
	return NewRedis(r.client, r.prefix, r.log)
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

func (r *Redis) channel() string {
	return r.prefix + ":changes"
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget: %w", err)
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (r *Redis) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, r.key(k), v, 0)
			r.publish(ctx, pipe, Change{Key: k, Value: v})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, r.key(k))
			r.publish(ctx, pipe, Change{Key: k, Deleted: true})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}

func (r *Redis) publish(ctx context.Context, pipe redis.Pipeliner, c Change) {
	b, err := json.Marshal(redisChange{Origin: r.origin, Change: c})
	if err != nil {
		r.log.Error("failed encoding change", zap.String("key", c.Key), zap.Error(err))
		return
	}
	pipe.Publish(ctx, r.channel(), b)
}

// watchBuffer is the channel buffer for Redis watch subscribers.
const watchBuffer = 16

func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis: subscribe: %w", err)
	}

	out := make(chan Change, watchBuffer)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var rc redisChange
				if err := json.Unmarshal([]byte(msg.Payload), &rc); err != nil {
					r.log.Warn("dropping malformed change", zap.Error(err))
					continue
				}
				if rc.Origin == r.origin {
					continue
				}

				select {
				case out <- rc.Change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close leaves the client open; it belongs to whoever created it.
func (r *Redis) Close() error {
	return nil
}
