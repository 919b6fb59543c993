// Package kv holds the durable key-value stores the console session is
// persisted in. Every store reports changes made by other holders of the
// same data through Watch, which is how separate consoles sharing a store
// learn about each other's logins and logouts.
package kv

import (
	"context"
	"errors"
)

var (
	ErrClosed = errors.New("store closed")
)

type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// GetMany reads all keys from one snapshot. Absent keys are left out
	// of the result.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	// SetMany writes all values or none of them.
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	// Watch streams changes made through other handles of the store. The
	// channel is closed once ctx is done.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}

func Set(ctx context.Context, s Store, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// diff lists the changes that turn prev into next.
func diff(prev, next map[string]string) []Change {
	var changes []Change
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			changes = append(changes, Change{Key: k, Value: v})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			changes = append(changes, Change{Key: k, Deleted: true})
		}
	}
	return changes
}

func pick(values map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			out[k] = v
		}
	}
	return out
}
