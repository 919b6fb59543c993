package kv

import (
	"context"
	"sync"
)

type subscriber struct {
	out    chan Change
	origin uint64
	stop   chan struct{}
	wake   chan struct{}

	mu    sync.Mutex
	queue []Change
}

// fanout delivers changes to subscribers that did not cause them, in
// publish order. Publishing never blocks: each subscriber has its own
// queue drained by its own goroutine, so it is safe to publish while
// holding a store lock that the subscriber may need.
type fanout struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func (f *fanout) subscribe(ctx context.Context, origin uint64) <-chan Change {
	s := &subscriber{
		out:    make(chan Change),
		origin: origin,
		stop:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[*subscriber]struct{})
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go f.pump(ctx, s)
	return s.out
}

func (f *fanout) pump(ctx context.Context, s *subscriber) {
	defer close(s.out)
	defer func() {
		f.mu.Lock()
		delete(f.subs, s)
		f.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, c := range pending {
			select {
			case s.out <- c:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

func (f *fanout) publish(origin uint64, changes []Change) {
	if len(changes) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if s.origin == origin {
			continue
		}

		s.mu.Lock()
		s.queue = append(s.queue, changes...)
		s.mu.Unlock()

		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		delete(f.subs, s)
		close(s.stop)
	}
}
