package event

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Fanout gửi một giá trị tới tất cả client đã đăng ký.
// A slow client never blocks the sender: when its buffer is full the value is skipped,
// and it catches up with the next one since every value is a full snapshot.
type Fanout[T any] struct {
	name    string
	clients map[chan T]struct{}
	closed  bool
	mu      sync.Mutex
}

func NewFanout[T any](name string) *Fanout[T] {
	return &Fanout[T]{
		name:    name,
		clients: make(map[chan T]struct{}),
	}
}

// Register đăng ký client. Registering on a closed fanout closes the client right away.
func (f *Fanout[T]) Register(client chan T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(client)
		return
	}
	f.clients[client] = struct{}{}
	log.Debug().Str("fanout", f.name).Int("clients", len(f.clients)).Msg("client registered")
}

// Unregister hủy đăng ký client và đóng channel của nó.
func (f *Fanout[T]) Unregister(client chan T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client)
		log.Debug().Str("fanout", f.name).Int("clients", len(f.clients)).Msg("client unregistered")
	}
}

// Broadcast gửi giá trị tới tất cả client.
func (f *Fanout[T]) Broadcast(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		select {
		case client <- value:
		default:
			log.Debug().Str("fanout", f.name).Msg("client buffer full, skipping value")
		}
	}
}

// Close đóng tất cả client. Later broadcasts are no-ops.
func (f *Fanout[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for client := range f.clients {
		delete(f.clients, client)
		close(client)
	}
}
