package web

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Broker pushes navigation commands to every open console page over
// server-sent events. It is the console's guard.Navigator.
type Broker struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[chan string]struct{}
	last    string
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{
		log:     log,
		clients: map[chan string]struct{}{},
	}
}

// Navigate sends route to every connected page. Pages that are not
// reading are skipped.
func (b *Broker) Navigate(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = route
	for c := range b.clients {
		select {
		case c <- route:
		default:
		}
	}
	b.log.Debug("navigate", zap.String("route", route), zap.Int("pages", len(b.clients)))
}

// LastRoute is the most recent route sent, or "" if none.
func (b *Broker) LastRoute() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Broker) subscribe() chan string {
	c := make(chan string, 1)
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *Broker) unsubscribe(c chan string) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := b.subscribe()
	defer b.unsubscribe(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case route := <-c:
			fmt.Fprintf(w, "event: navigate\ndata: %s\n\n", route)
			flusher.Flush()
		}
	}
}
