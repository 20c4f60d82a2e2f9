package fanout

import (
	"sync"

	"github.com/google/uuid"
)

type subscriber[T any] struct {
	id string
	fn func(T)
}

// Hub delivers every published value to all current subscribers, in
// subscription order, on the publishing goroutine. The zero value is
// ready to use.
type Hub[T any] struct {
	subscribers []subscriber[T]
	mu          sync.RWMutex
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	id := uuid.NewString()

	h.mu.Lock()
	h.subscribers = append(h.subscribers, subscriber[T]{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subscribers {
			if s.id == id {
				h.subscribers = append(h.subscribers[:i:i], h.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every subscriber with v. Subscribers may subscribe or
// unsubscribe from inside the callback.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subscribers := make([]subscriber[T], len(h.subscribers))
	copy(subscribers, h.subscribers)
	h.mu.RUnlock()

	for _, s := range subscribers {
		s.fn(v)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
