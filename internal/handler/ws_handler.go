package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/internal/dto"
	"github.com/salonrush/queue-broker/internal/hub"
	"github.com/salonrush/queue-broker/internal/metrics"
	"github.com/salonrush/queue-broker/internal/service"
	"github.com/salonrush/queue-broker/pkg/config"
	"github.com/salonrush/queue-broker/pkg/logger"
	"github.com/salonrush/queue-broker/pkg/response"
	"go.uber.org/zap"
)

// WSHandler upgrades HTTP requests to WebSocket sessions and pumps
// messages between the socket and the hub.
type WSHandler struct {
	hub      *hub.Hub
	service  *service.QueueService
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(h *hub.Hub, svc *service.QueueService, cfg config.WebSocketConfig, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			// Browser clients connect from salon-owned origins we do not
			// know ahead of time.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Serve handles GET /ws. The handshake carries user_id and role as query
// parameters; role defaults to customer, user_id to a fresh id.
func (h *WSHandler) Serve(c *gin.Context) {
	role := domain.Role(c.DefaultQuery("role", string(domain.RoleCustomer)))
	if !role.Valid() {
		response.BadRequest(c, fmt.Sprintf("invalid role %q", role))
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		userID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := hub.NewSession(uuid.NewString(), userID, role, h.cfg.SendBufferSize)
	h.hub.Register(sess)
	metrics.SessionConnected(c.Request.Context())

	h.log.Info("session connected",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("role", string(role)))

	go h.writePump(conn, sess)
	go h.readPump(conn, sess)
}

// readPump drains inbound frames until the connection dies, then tears
// the session down. It is the only goroutine reading the socket.
func (h *WSHandler) readPump(conn *websocket.Conn, sess *hub.Session) {
	defer func() {
		h.hub.OnDisconnect(sess)
		conn.Close()
		metrics.SessionDisconnected(context.Background())
		h.log.Info("session disconnected", zap.String("session_id", sess.ID))
	}()

	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("unexpected close", zap.String("session_id", sess.ID), zap.Error(err))
			}
			return
		}

		var env dto.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			h.sendError(context.Background(), sess, "INVALID_REQUEST", "malformed message envelope")
			continue
		}
		h.dispatch(context.Background(), sess, &env)
	}
}

// writePump drains the session outbox and keeps the connection alive with
// pings. It is the only goroutine writing the socket.
func (h *WSHandler) writePump(conn *websocket.Conn, sess *hub.Session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sess.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound envelope to its transition. Failures are
// reported only to the originating session as an error event; the room
// never observes a failed transition.
func (h *WSHandler) dispatch(ctx context.Context, sess *hub.Session, env *dto.Envelope) {
	var err error
	switch env.Event {
	case dto.EventJoinSalonRoom:
		var req dto.JoinRoomRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.JoinRoom(ctx, sess, &req)
		}
	case dto.EventLeaveSalonRoom:
		var req dto.LeaveRoomRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.LeaveRoom(ctx, sess, &req)
		}
	case dto.EventJoinQueue:
		var req dto.JoinQueueRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.JoinQueue(ctx, sess, &req)
		}
	case dto.EventLeaveQueue:
		var req dto.LeaveQueueRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.LeaveQueue(ctx, sess, &req)
		}
	case dto.EventCompleteService:
		var req dto.CompleteServiceRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.CompleteService(ctx, sess, &req)
		}
	case dto.EventUpdateQueue:
		var req dto.UpdateQueueRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.AdjustQueue(ctx, sess, &req)
		}
	case dto.EventToggleStatus:
		var req dto.ToggleStatusRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.ToggleStatus(ctx, sess, &req)
		}
	case dto.EventMoveUp:
		var req dto.MoveUpRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.MoveUp(ctx, sess, &req)
		}
	case dto.EventSendNotification:
		var req dto.SendNotificationRequest
		if err = decode(env.Payload, &req); err == nil {
			err = h.service.Notify(ctx, sess, &req)
		}
	default:
		h.sendError(ctx, sess, "UNKNOWN_EVENT", fmt.Sprintf("unknown event %q", env.Event))
		return
	}

	if err != nil {
		h.log.Debug("transition rejected",
			zap.String("session_id", sess.ID),
			zap.String("event", env.Event),
			zap.Error(err))
		h.sendError(ctx, sess, domain.ErrorCode(err), err.Error())
	}
}

func (h *WSHandler) sendError(ctx context.Context, sess *hub.Session, code, message string) {
	metrics.RecordRejection(ctx, code)
	h.hub.SendTo(sess, dto.Event{Name: dto.EventError, Payload: dto.ErrorPayload{
		Code:    code,
		Message: message,
	}})
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return domain.ErrInvalidRequest
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}
