package hub

import (
	"sync"
	"sync/atomic"

	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/internal/dto"
	"github.com/salonrush/queue-broker/pkg/logger"
	"go.uber.org/zap"
)

// Hub tracks which sessions are subscribed to which salon rooms and
// delivers events to exactly the right audience. It is pure bookkeeping:
// operations never fail with business errors, and a dead or slow session
// simply drops messages.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // by connection id
	rooms    map[string]map[string]*Session // salon id -> connection id -> session
	byUser   map[string]map[string]*Session // user id -> connection id -> session
	subs     map[string]map[string]struct{} // connection id -> salon ids

	dropped uint64

	log *logger.Logger
}

// New creates an empty hub.
func New(log *logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		byUser:   make(map[string]map[string]*Session),
		subs:     make(map[string]map[string]struct{}),
		log:      log,
	}
}

// Register adds a connected session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
	if s.UserID != "" {
		if h.byUser[s.UserID] == nil {
			h.byUser[s.UserID] = make(map[string]*Session)
		}
		h.byUser[s.UserID][s.ID] = s
	}
}

// OnDisconnect removes the session from every index and closes its
// outbox. It must be called exactly once per session teardown; skipping
// it leaks fan-out targets, calling it twice is harmless.
func (h *Hub) OnDisconnect(s *Session) {
	h.mu.Lock()
	for salonID := range h.subs[s.ID] {
		h.removeFromRoom(salonID, s.ID)
	}
	delete(h.subs, s.ID)
	delete(h.sessions, s.ID)
	if peers, ok := h.byUser[s.UserID]; ok {
		delete(peers, s.ID)
		if len(peers) == 0 {
			delete(h.byUser, s.UserID)
		}
	}
	h.mu.Unlock()

	s.close()
}

// Subscribe adds the session to a salon's room. Subscribing twice has no
// additional effect.
func (h *Hub) Subscribe(s *Session, salonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	if h.rooms[salonID] == nil {
		h.rooms[salonID] = make(map[string]*Session)
	}
	h.rooms[salonID][s.ID] = s
	if h.subs[s.ID] == nil {
		h.subs[s.ID] = make(map[string]struct{})
	}
	h.subs[s.ID][salonID] = struct{}{}
}

// Unsubscribe removes the session from a salon's room. Removing a
// session that is not subscribed is a no-op.
func (h *Hub) Unsubscribe(s *Session, salonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(salonID, s.ID)
	if subs, ok := h.subs[s.ID]; ok {
		delete(subs, salonID)
	}
}

// removeFromRoom must be called with the hub lock held.
func (h *Hub) removeFromRoom(salonID, sessionID string) {
	if room, ok := h.rooms[salonID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.rooms, salonID)
		}
	}
}

// Broadcast delivers the event to every session currently in the salon's
// room. The payload is marshaled once and shared.
func (h *Hub) Broadcast(salonID string, evt dto.Event) {
	h.broadcast(salonID, evt, "")
}

// BroadcastRole delivers the event only to room sessions with the given
// role (owner dashboards, typically).
func (h *Hub) BroadcastRole(salonID string, role domain.Role, evt dto.Event) {
	h.broadcast(salonID, evt, role)
}

func (h *Hub) broadcast(salonID string, evt dto.Event, role domain.Role) {
	msg, err := evt.Marshal()
	if err != nil {
		h.log.Error("marshal broadcast event", zap.String("event", evt.Name), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[salonID]))
	for _, s := range h.rooms[salonID] {
		if role != "" && s.Role != role {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		h.deliver(s, msg, evt.Name)
	}
}

// SendTo delivers an event to exactly one session.
func (h *Hub) SendTo(s *Session, evt dto.Event) {
	msg, err := evt.Marshal()
	if err != nil {
		h.log.Error("marshal event", zap.String("event", evt.Name), zap.Error(err))
		return
	}
	h.deliver(s, msg, evt.Name)
}

// SendToConn delivers an event to the session with the given connection
// id, if it is still connected.
func (h *Hub) SendToConn(connID string, evt dto.Event) {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	if ok {
		h.SendTo(s, evt)
	}
}

// SendToUser delivers an event to every session of one user.
func (h *Hub) SendToUser(userID string, evt dto.Event) {
	msg, err := evt.Marshal()
	if err != nil {
		h.log.Error("marshal event", zap.String("event", evt.Name), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.byUser[userID]))
	for _, s := range h.byUser[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		h.deliver(s, msg, evt.Name)
	}
}

func (h *Hub) deliver(s *Session, msg []byte, event string) {
	if !s.trySend(msg) {
		atomic.AddUint64(&h.dropped, 1)
		h.log.Debug("dropped message for session",
			zap.String("session_id", s.ID),
			zap.String("event", event))
	}
}

// RoomSize returns how many sessions are in a salon's room.
func (h *Hub) RoomSize(salonID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[salonID])
}

// SessionCount returns how many sessions are connected.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Dropped returns how many deliveries were dropped since start.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
