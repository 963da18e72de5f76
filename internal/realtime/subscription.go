package realtime

import (
	"io"
	"sync"
)

type subscription struct {
	scope  Scope
	fn     Handler
	closer io.Closer

	mu     sync.Mutex
	closed bool
	seen   map[string]struct{}
}

func newSubscription(scope Scope, fn Handler, closer io.Closer) *subscription {
	return &subscription{
		scope:  scope,
		fn:     fn,
		closer: closer,
		seen:   make(map[string]struct{}),
	}
}

// dispatch filters one decoded event and invokes the handler if it is a new
// creation event in scope. Ids stay in the seen set for the life of the
// subscription, so a transport redelivery never reaches the handler twice.
// Liveness is checked before the callback so events delivered mid-teardown
// are dropped.
func (s *subscription) dispatch(event Event) {
	if event.Kind != EventMessageCreated {
		return
	}
	if !s.scope.Matches(&event.Message) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, delivered := s.seen[event.Message.ID]; delivered {
		s.mu.Unlock()
		return
	}
	s.seen[event.Message.ID] = struct{}{}
	s.mu.Unlock()

	s.fn(event.Message)
}

func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.closer != nil {
		_ = s.closer.Close()
	}
}
