// Package session holds the authentication and current user state of the application and
// notifies subscribers when it changes.
package session

import "sync"

// Broadcaster delivers events to subscribed callbacks. Callbacks are invoked synchronously
// by Publish, in no particular order, and late subscribers do not receive past events.
type Broadcaster[E any] struct {
	mu        sync.RWMutex
	listeners map[*Subscription]func(E)
}

// Subscription is returned by Subscribe and removes the callback when cancelled.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the callback. It is safe to call more than once and from within
// the callback itself.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func NewBroadcaster[E any]() *Broadcaster[E] {
	return &Broadcaster[E]{listeners: make(map[*Subscription]func(E))}
}

func (b *Broadcaster[E]) Subscribe(fn func(E)) *Subscription {
	sub := &Subscription{}
	sub.cancel = func() {
		b.mu.Lock()
		delete(b.listeners, sub)
		b.mu.Unlock()
	}
	b.mu.Lock()
	b.listeners[sub] = fn
	b.mu.Unlock()
	return sub
}

// Publish calls every current subscriber with the event.
func (b *Broadcaster[E]) Publish(event E) {
	b.mu.RLock()
	listeners := make([]func(E), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
