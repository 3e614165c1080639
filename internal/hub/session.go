package hub

import (
	"sync"

	"github.com/salonrush/queue-broker/internal/domain"
)

// Session is one connected client. The transport layer owns the socket;
// the hub only sees the buffered outbox. Delivery into the outbox is
// non-blocking: a session that cannot keep up loses messages instead of
// stalling fan-out for everyone else.
type Session struct {
	ID     string
	UserID string
	Role   domain.Role

	mu     sync.Mutex
	outbox chan []byte
	closed bool
}

// NewSession creates a session with the given outbox capacity.
func NewSession(id, userID string, role domain.Role, buffer int) *Session {
	if buffer <= 0 {
		buffer = 32
	}
	return &Session{
		ID:     id,
		UserID: userID,
		Role:   role,
		outbox: make(chan []byte, buffer),
	}
}

// Outbox returns the channel the write pump drains. It is closed when
// the session is torn down.
func (s *Session) Outbox() <-chan []byte {
	return s.outbox
}

// trySend queues a message without blocking. It reports false when the
// session is closed or its buffer is full.
func (s *Session) trySend(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbox <- msg:
		return true
	default:
		return false
	}
}

// close shuts the outbox exactly once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
}
