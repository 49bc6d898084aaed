package game

import "sync"

// Reducer derives the next state from the current one.
type Reducer[S any] func(S) S

// Listener observes every state change.
type Listener[S any] func(S)

type listenerEntry[S any] struct {
	id int
	fn Listener[S]
}

// Store is a typed observable state container.
//
// Dispatch applies its reducer under the lock before returning, so a Get that
// follows a Dispatch on any goroutine sees that update. When the state value
// changes, the new value is queued for notification. The first dispatching
// goroutine drains the queue, handing each value to every listener once,
// synchronously and in registration order. Notifications produced while a
// round is running (from a listener, or from another goroutine) are delivered
// by that round after the current one finishes, so listeners never re-enter
// each other.
type Store[S comparable] struct {
	mu        sync.Mutex
	state     S
	listeners []listenerEntry[S]
	nextID    int
	pending   []S
	draining  bool
}

// NewStore returns a store holding initial.
func NewStore[S comparable](initial S) *Store[S] {
	return &Store[S]{state: initial}
}

// Get returns the current state.
func (s *Store[S]) Get() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies reducer to the state.
func (s *Store[S]) Dispatch(reducer Reducer[S]) {
	if reducer == nil {
		return
	}

	s.mu.Lock()
	prev := s.state
	updated := reducer(prev)
	if updated == prev {
		s.mu.Unlock()
		return
	}
	s.state = updated
	s.pending = append(s.pending, updated)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *Store[S]) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		listeners := make([]listenerEntry[S], len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		s.notify(listeners, next)
	}
}

func (s *Store[S]) notify(listeners []listenerEntry[S], state S) {
	done := false
	defer func() {
		if done {
			return
		}
		// A listener panicked: drop the round so later dispatches start a new one.
		s.mu.Lock()
		s.pending = nil
		s.draining = false
		s.mu.Unlock()
	}()

	for _, l := range listeners {
		l.fn(state)
	}
	done = true
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store[S]) Subscribe(fn Listener[S]) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry[S]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
