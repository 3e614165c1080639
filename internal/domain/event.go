package domain

import "time"

// QueueEventType identifies a queue lifecycle event on the analytics feed.
type QueueEventType string

const (
	QueueEventJoined        QueueEventType = "queue.joined"
	QueueEventLeft          QueueEventType = "queue.left"
	QueueEventCompleted     QueueEventType = "service.completed"
	QueueEventStatusChanged QueueEventType = "status.changed"
)

// QueueEvent is the compact lifecycle record published after a committed
// transition, consumed by receipts/analytics collaborators.
type QueueEvent struct {
	EventID     string          `json:"event_id"`
	Type        QueueEventType  `json:"type"`
	SalonID     string          `json:"salon_id"`
	CustomerID  string          `json:"customer_id,omitempty"`
	QueueLength int             `json:"queue_length"`
	IsOpen      bool            `json:"is_open"`
	TotalAmount string          `json:"total_amount,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewQueueEvent builds a lifecycle record for one salon transition.
func NewQueueEvent(eventType QueueEventType, eventID string, q *SalonQueue, customerID string) *QueueEvent {
	return &QueueEvent{
		EventID:     eventID,
		Type:        eventType,
		SalonID:     q.SalonID,
		CustomerID:  customerID,
		QueueLength: q.Len(),
		IsOpen:      q.IsOpen,
		Timestamp:   time.Now().UTC(),
	}
}

// Key returns the Kafka partition key; per-salon keying keeps the feed
// ordered the same way transitions were applied.
func (e *QueueEvent) Key() string {
	return e.SalonID
}
