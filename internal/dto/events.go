package dto

import (
	"encoding/json"

	"github.com/salonrush/queue-broker/internal/domain"
)

// Inbound event names (client -> broker)
const (
	EventJoinSalonRoom    = "join-salon-room"
	EventLeaveSalonRoom   = "leave-salon-room"
	EventJoinQueue        = "join-queue"
	EventLeaveQueue       = "leave-queue"
	EventCompleteService  = "complete-service"
	EventUpdateQueue      = "update-queue"
	EventToggleStatus     = "toggle-salon-status"
	EventMoveUp           = "move-up"
	EventSendNotification = "send-notification"
)

// Outbound event names (broker -> client)
const (
	EventSalonData           = "salon-data"
	EventQueueJoined         = "queue-joined"
	EventQueueUpdated        = "queue-updated"
	EventPositionUpdated     = "position-updated"
	EventYourTurn            = "your-turn"
	EventServiceCompleted    = "service-completed"
	EventQueueLeft           = "queue-left"
	EventCustomerJoinedQueue = "customer-joined-queue"
	EventSalonStatusChanged  = "salon-status-changed"
	EventNotification        = "notification"
	EventError               = "error"
)

// Envelope is the wire framing for every message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound event before marshaling.
type Event struct {
	Name    string
	Payload interface{}
}

// Marshal encodes the event into its wire envelope. Fan-out paths call
// this once and deliver the same bytes to every session.
func (e Event) Marshal() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name, Payload: payload})
}

// ---- inbound payloads ----

// JoinRoomRequest subscribes the session to a salon's room.
type JoinRoomRequest struct {
	SalonID string `json:"salonId"`
}

// LeaveRoomRequest unsubscribes the session from a salon's room.
type LeaveRoomRequest struct {
	SalonID string `json:"salonId"`
}

// JoinQueueRequest asks to append the requester to a salon's queue.
type JoinQueueRequest struct {
	SalonID          string                   `json:"salonId"`
	SalonName        string                   `json:"salonName,omitempty"`
	CustomerName     string                   `json:"customerName"`
	CustomerPhone    string                   `json:"customerPhone"`
	CustomerEmail    string                   `json:"customerEmail,omitempty"`
	SelectedServices []domain.SelectedService `json:"selectedServices"`
	PaymentReference string                   `json:"paymentReference,omitempty"`
}

// LeaveQueueRequest withdraws a waiting customer.
type LeaveQueueRequest struct {
	SalonID    string `json:"salonId"`
	CustomerID string `json:"customerId"`
}

// CompleteServiceRequest marks a waiting customer as served.
type CompleteServiceRequest struct {
	SalonID    string `json:"salonId"`
	CustomerID string `json:"customerId"`
}

// UpdateQueueRequest manually adjusts the effective queue length by ±1.
type UpdateQueueRequest struct {
	SalonID string `json:"salonId"`
	Change  int    `json:"change"`
}

// ToggleStatusRequest opens or closes a salon for new joins.
type ToggleStatusRequest struct {
	SalonID   string `json:"salonId"`
	SalonName string `json:"salonName,omitempty"`
	IsOpen    bool   `json:"isOpen"`
}

// MoveUpRequest swaps a customer with the entry directly ahead.
type MoveUpRequest struct {
	SalonID    string `json:"salonId"`
	CustomerID string `json:"customerId"`
}

// SendNotificationRequest relays a notification to one user's sessions.
type SendNotificationRequest struct {
	TargetUserID string              `json:"targetUserId"`
	Notification NotificationPayload `json:"notification"`
}

// ---- outbound payloads ----

// SalonData is the full state snapshot sent to a session on room join.
type SalonData struct {
	SalonID           string               `json:"salonId"`
	SalonName         string               `json:"salonName"`
	IsOpen            bool                 `json:"isOpen"`
	CurrentQueue      int                  `json:"currentQueue"`
	EstimatedWaitTime int                  `json:"estimatedWaitTime"`
	Customers         []*domain.QueueEntry `json:"customers"`
}

// QueueJoined confirms a join to the requester.
type QueueJoined struct {
	CustomerID        string `json:"customerId"`
	Position          int    `json:"position"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
}

// QueueUpdated is the room broadcast after any queue mutation.
type QueueUpdated struct {
	SalonID           string               `json:"salonId"`
	CurrentQueue      int                  `json:"currentQueue"`
	EstimatedWaitTime int                  `json:"estimatedWaitTime"`
	Customers         []*domain.QueueEntry `json:"customers,omitempty"`
}

// PositionUpdated tells one customer their new position.
type PositionUpdated struct {
	SalonID           string `json:"salonId"`
	Position          int    `json:"position"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
}

// YourTurn tells the customer now at position 1 they are next.
type YourTurn struct {
	SalonID   string `json:"salonId"`
	SalonName string `json:"salonName"`
	Message   string `json:"message"`
	TurnPass  string `json:"turnPass,omitempty"`
}

// ServiceCompleted tells a customer their service was completed.
type ServiceCompleted struct {
	SalonID   string `json:"salonId"`
	SalonName string `json:"salonName"`
}

// QueueLeft confirms a leave to the requester.
type QueueLeft struct {
	SalonID string `json:"salonId"`
	Message string `json:"message"`
}

// CustomerJoinedQueue is the owner-facing broadcast carrying the full
// new entry so dashboards can render it.
type CustomerJoinedQueue struct {
	SalonID           string             `json:"salonId"`
	QueueLength       int                `json:"queueLength"`
	EstimatedWaitTime int                `json:"estimatedWaitTime"`
	Customer          *domain.QueueEntry `json:"customer"`
}

// SalonStatusChanged is broadcast when a salon opens or closes.
type SalonStatusChanged struct {
	SalonID string `json:"salonId"`
	IsOpen  bool   `json:"isOpen"`
}

// NotificationPayload is a free-form targeted notification.
type NotificationPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorPayload is the rejection event sent only to the originating
// session when a transition fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
