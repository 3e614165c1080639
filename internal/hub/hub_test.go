package hub

import (
	"encoding/json"
	"testing"

	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/internal/dto"
	"github.com/salonrush/queue-broker/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return New(logger.Get())
}

func drain(t *testing.T, s *Session) []dto.Envelope {
	t.Helper()
	var out []dto.Envelope
	for {
		select {
		case msg, ok := <-s.Outbox():
			if !ok {
				return out
			}
			var env dto.Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func testEvent(name string) dto.Event {
	return dto.Event{Name: name, Payload: map[string]string{"k": "v"}}
}

func TestHub_BroadcastReachesRoomMembers(t *testing.T) {
	h := newTestHub()

	a := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	b := NewSession("conn-b", "user-b", domain.RoleCustomer, 8)
	outsider := NewSession("conn-c", "user-c", domain.RoleCustomer, 8)
	for _, s := range []*Session{a, b, outsider} {
		h.Register(s)
	}
	h.Subscribe(a, "salon-1")
	h.Subscribe(b, "salon-1")
	h.Subscribe(outsider, "salon-2")

	h.Broadcast("salon-1", testEvent("queue-updated"))

	require.Len(t, drain(t, a), 1)
	require.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, outsider))
}

func TestHub_BroadcastRoleFilters(t *testing.T) {
	h := newTestHub()

	customer := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	owner := NewSession("conn-b", "user-b", domain.RoleOwner, 8)
	h.Register(customer)
	h.Register(owner)
	h.Subscribe(customer, "salon-1")
	h.Subscribe(owner, "salon-1")

	h.BroadcastRole("salon-1", domain.RoleOwner, testEvent("customer-joined-queue"))

	assert.Empty(t, drain(t, customer))
	got := drain(t, owner)
	require.Len(t, got, 1)
	assert.Equal(t, "customer-joined-queue", got[0].Event)
}

func TestHub_SubscribeIsIdempotent(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Register(s)
	h.Subscribe(s, "salon-1")
	h.Subscribe(s, "salon-1")

	h.Broadcast("salon-1", testEvent("queue-updated"))
	assert.Len(t, drain(t, s), 1)
	assert.Equal(t, 1, h.RoomSize("salon-1"))
}

func TestHub_SubscribeUnregisteredIsIgnored(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Subscribe(s, "salon-1")

	assert.Equal(t, 0, h.RoomSize("salon-1"))
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Register(s)
	h.Subscribe(s, "salon-1")
	h.Unsubscribe(s, "salon-1")

	h.Broadcast("salon-1", testEvent("queue-updated"))
	assert.Empty(t, drain(t, s))

	// Unsubscribing twice is harmless.
	h.Unsubscribe(s, "salon-1")
}

func TestHub_SendToUserReachesAllSessions(t *testing.T) {
	h := newTestHub()

	phone := NewSession("conn-a", "user-1", domain.RoleCustomer, 8)
	laptop := NewSession("conn-b", "user-1", domain.RoleCustomer, 8)
	other := NewSession("conn-c", "user-2", domain.RoleCustomer, 8)
	for _, s := range []*Session{phone, laptop, other} {
		h.Register(s)
	}

	h.SendToUser("user-1", testEvent("notification"))

	assert.Len(t, drain(t, phone), 1)
	assert.Len(t, drain(t, laptop), 1)
	assert.Empty(t, drain(t, other))
}

func TestHub_SendToConn(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Register(s)

	h.SendToConn("conn-a", testEvent("your-turn"))
	h.SendToConn("conn-missing", testEvent("your-turn"))

	got := drain(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, "your-turn", got[0].Event)
}

func TestHub_DisconnectRemovesEverywhere(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Register(s)
	h.Subscribe(s, "salon-1")
	h.Subscribe(s, "salon-2")

	h.OnDisconnect(s)

	assert.Equal(t, 0, h.RoomSize("salon-1"))
	assert.Equal(t, 0, h.RoomSize("salon-2"))
	assert.Equal(t, 0, h.SessionCount())

	// Outbox is closed.
	_, ok := <-s.Outbox()
	assert.False(t, ok)

	// A second teardown is harmless.
	h.OnDisconnect(s)
}

func TestHub_SlowSessionDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 2)
	h.Register(s)
	h.Subscribe(s, "salon-1")

	for i := 0; i < 5; i++ {
		h.Broadcast("salon-1", testEvent("queue-updated"))
	}

	// Buffer holds two; the other three were dropped, not queued.
	assert.Len(t, drain(t, s), 2)
	assert.Equal(t, uint64(3), h.Dropped())
}

func TestHub_SendAfterDisconnectDoesNotPanic(t *testing.T) {
	h := newTestHub()

	s := NewSession("conn-a", "user-a", domain.RoleCustomer, 8)
	h.Register(s)
	h.OnDisconnect(s)

	h.SendTo(s, testEvent("queue-updated"))
	assert.Equal(t, uint64(1), h.Dropped())
}
