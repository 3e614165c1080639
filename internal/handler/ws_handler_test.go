package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/internal/dto"
	"github.com/salonrush/queue-broker/internal/hub"
	"github.com/salonrush/queue-broker/internal/service"
	"github.com/salonrush/queue-broker/pkg/config"
	"github.com/salonrush/queue-broker/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Get()
	h := hub.New(log)
	passes, err := service.NewTurnPassIssuer("test-secret", 5*time.Minute)
	require.NoError(t, err)
	svc := service.NewQueueService(service.Config{PerHeadMinutes: 5}, h, nil, passes, log)

	wsCfg := config.WebSocketConfig{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendBufferSize:   16,
		MaxMessageSize:   65536,
		WriteWait:        5 * time.Second,
		PongWait:         30 * time.Second,
		PingInterval:     25 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}

	router := gin.New()
	router.GET("/ws", NewWSHandler(h, svc, wsCfg, log).Serve)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, userID string, role domain.Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=" + userID + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, name string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(dto.Envelope{Event: name, Payload: raw}))
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env dto.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func joinPayload(salonID string) dto.JoinQueueRequest {
	return dto.JoinQueueRequest{
		SalonID:       salonID,
		CustomerName:  "Alice",
		CustomerPhone: "555-0100",
		SelectedServices: []domain.SelectedService{
			{ServiceID: "cut", Name: "Haircut", DurationMinutes: 30, Price: decimal.NewFromInt(25)},
		},
	}
}

func TestWS_RejectsInvalidRole(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=barber"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_RoomJoinDeliversSnapshot(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, conn, dto.EventJoinSalonRoom, dto.JoinRoomRequest{SalonID: "salon-1"})

	env := readEvent(t, conn)
	require.Equal(t, dto.EventSalonData, env.Event)

	var data dto.SalonData
	require.NoError(t, json.Unmarshal(env.Payload, &data))
	assert.Equal(t, "salon-1", data.SalonID)
	assert.True(t, data.IsOpen)
	assert.Equal(t, 0, data.CurrentQueue)
}

func TestWS_JoinQueueFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, conn, dto.EventJoinSalonRoom, dto.JoinRoomRequest{SalonID: "salon-1"})
	require.Equal(t, dto.EventSalonData, readEvent(t, conn).Event)

	sendEvent(t, conn, dto.EventJoinQueue, joinPayload("salon-1"))

	// The requester hears the targeted confirmation first, then the room
	// broadcast it is itself part of.
	env := readEvent(t, conn)
	require.Equal(t, dto.EventQueueJoined, env.Event)
	var joined dto.QueueJoined
	require.NoError(t, json.Unmarshal(env.Payload, &joined))
	assert.Equal(t, 1, joined.Position)
	assert.Equal(t, 0, joined.EstimatedWaitTime)
	assert.NotEmpty(t, joined.CustomerID)

	env = readEvent(t, conn)
	require.Equal(t, dto.EventQueueUpdated, env.Event)
	var updated dto.QueueUpdated
	require.NoError(t, json.Unmarshal(env.Payload, &updated))
	assert.Equal(t, 1, updated.CurrentQueue)
	assert.Equal(t, 5, updated.EstimatedWaitTime)
}

func TestWS_OwnerSeesCustomerJoin(t *testing.T) {
	srv := newTestServer(t)
	owner := dialWS(t, srv, "owner-1", domain.RoleOwner)
	customer := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, owner, dto.EventJoinSalonRoom, dto.JoinRoomRequest{SalonID: "salon-1"})
	require.Equal(t, dto.EventSalonData, readEvent(t, owner).Event)

	sendEvent(t, customer, dto.EventJoinQueue, joinPayload("salon-1"))
	require.Equal(t, dto.EventQueueJoined, readEvent(t, customer).Event)

	// Owner in the room gets the broadcast plus the owner-only event.
	require.Equal(t, dto.EventQueueUpdated, readEvent(t, owner).Event)
	env := readEvent(t, owner)
	require.Equal(t, dto.EventCustomerJoinedQueue, env.Event)

	var cjq dto.CustomerJoinedQueue
	require.NoError(t, json.Unmarshal(env.Payload, &cjq))
	require.NotNil(t, cjq.Customer)
	assert.Equal(t, "Alice", cjq.Customer.CustomerName)
}

func TestWS_CustomerCannotCompleteService(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, conn, dto.EventCompleteService, dto.CompleteServiceRequest{
		SalonID:    "salon-1",
		CustomerID: "anyone",
	})

	env := readEvent(t, conn)
	require.Equal(t, dto.EventError, env.Event)

	var e dto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, "UNAUTHORIZED", e.Code)
}

func TestWS_UnknownEventReturnsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, conn, "do-something-else", gin.H{})

	env := readEvent(t, conn)
	require.Equal(t, dto.EventError, env.Event)

	var e dto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, "UNKNOWN_EVENT", e.Code)
}

func TestWS_MalformedPayloadReturnsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "user-1", domain.RoleCustomer)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"join-queue","payload":"not-an-object"}`)))

	env := readEvent(t, conn)
	require.Equal(t, dto.EventError, env.Event)

	var e dto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, "INVALID_REQUEST", e.Code)
}

func TestWS_ClosedSalonRejectsJoin(t *testing.T) {
	srv := newTestServer(t)
	owner := dialWS(t, srv, "owner-1", domain.RoleOwner)
	customer := dialWS(t, srv, "user-1", domain.RoleCustomer)

	sendEvent(t, owner, dto.EventToggleStatus, dto.ToggleStatusRequest{
		SalonID: "salon-1",
		IsOpen:  false,
	})

	// Give the toggle time to apply before the join races it.
	time.Sleep(100 * time.Millisecond)

	sendEvent(t, customer, dto.EventJoinQueue, joinPayload("salon-1"))

	env := readEvent(t, customer)
	require.Equal(t, dto.EventError, env.Event)

	var e dto.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &e))
	assert.Equal(t, "SALON_CLOSED", e.Code)
}
