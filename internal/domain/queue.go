package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what kind of client a session represents.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleOwner
}

// SelectedService is one service line a customer picked at join time.
type SelectedService struct {
	ServiceID       string          `json:"serviceId"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"durationMinutes"`
	Price           decimal.Decimal `json:"price"`
}

// QueueEntry is one customer's place in a salon's waiting line.
//
// TotalAmount and TotalDuration are summed once at join time and never
// recomputed, so later changes to a salon's service catalog cannot alter
// what a waiting customer agreed to pay.
type QueueEntry struct {
	CustomerID       string            `json:"customerId"`
	CustomerName     string            `json:"customerName"`
	ContactPhone     string            `json:"contactPhone"`
	ContactEmail     string            `json:"contactEmail,omitempty"`
	SelectedServices []SelectedService `json:"selectedServices"`
	TotalAmount      decimal.Decimal   `json:"totalAmount"`
	TotalDuration    int               `json:"totalDurationMinutes"`
	PaymentReference string            `json:"paymentReference,omitempty"`
	JoinedAt         time.Time         `json:"joinedAt"`

	// SessionID is the connection that created the entry. Empty for
	// synthetic walk-in entries, which have no session to notify.
	SessionID string `json:"-"`
}

// NewQueueEntry builds an entry with derived sums computed from the
// service list.
func NewQueueEntry(customerID, name, phone, email string, services []SelectedService, paymentRef, sessionID string) *QueueEntry {
	total := decimal.Zero
	duration := 0
	for _, s := range services {
		total = total.Add(s.Price)
		duration += s.DurationMinutes
	}
	return &QueueEntry{
		CustomerID:       customerID,
		CustomerName:     name,
		ContactPhone:     phone,
		ContactEmail:     email,
		SelectedServices: services,
		TotalAmount:      total,
		TotalDuration:    duration,
		PaymentReference: paymentRef,
		JoinedAt:         time.Now().UTC(),
		SessionID:        sessionID,
	}
}

// Validate checks the fields a join requires
func (e *QueueEntry) Validate() error {
	if e.CustomerName == "" {
		return ErrInvalidRequest
	}
	if e.ContactPhone == "" {
		return ErrInvalidRequest
	}
	if len(e.SelectedServices) == 0 {
		return ErrInvalidRequest
	}
	return nil
}

// SalonQueue is the authoritative queue state for one salon. Position is
// structural: a customer's position is their index in Waiting plus one,
// so a removal can never leave a gap. The type is not safe for concurrent
// use on its own; the queue service serializes access per salon.
type SalonQueue struct {
	SalonID string
	Name    string
	IsOpen  bool
	Waiting []*QueueEntry
}

// NewSalonQueue creates an open, empty queue for a salon
func NewSalonQueue(salonID string) *SalonQueue {
	return &SalonQueue{SalonID: salonID, Name: salonID, IsOpen: true}
}

// DisplayName returns the salon name, falling back to the id
func (q *SalonQueue) DisplayName() string {
	if q.Name != "" {
		return q.Name
	}
	return q.SalonID
}

// Len returns the number of waiting customers
func (q *SalonQueue) Len() int {
	return len(q.Waiting)
}

// IndexOf returns the index of the entry with the given customer id, or
// -1 if no such entry exists.
func (q *SalonQueue) IndexOf(customerID string) int {
	for i, e := range q.Waiting {
		if e.CustomerID == customerID {
			return i
		}
	}
	return -1
}

// Append adds an entry to the tail and returns its 1-based position
func (q *SalonQueue) Append(e *QueueEntry) int {
	q.Waiting = append(q.Waiting, e)
	return len(q.Waiting)
}

// RemoveAt removes and returns the entry at index i
func (q *SalonQueue) RemoveAt(i int) *QueueEntry {
	e := q.Waiting[i]
	q.Waiting = append(q.Waiting[:i], q.Waiting[i+1:]...)
	return e
}

// SwapUp swaps the entry at index i with the one directly ahead of it
func (q *SalonQueue) SwapUp(i int) {
	q.Waiting[i-1], q.Waiting[i] = q.Waiting[i], q.Waiting[i-1]
}

// Head returns the entry at position 1, or nil when the queue is empty
func (q *SalonQueue) Head() *QueueEntry {
	if len(q.Waiting) == 0 {
		return nil
	}
	return q.Waiting[0]
}

// EstimateWait returns the wait in minutes for a 1-based position: the
// number of customers ahead times the per-head constant.
func EstimateWait(position, perHeadMinutes int) int {
	if position <= 1 {
		return 0
	}
	return (position - 1) * perHeadMinutes
}

// EstimateJoinWait returns the wait a prospective joiner faces given the
// current queue length. Non-empty queues always report at least one
// per-head interval.
func EstimateJoinWait(queueLen, perHeadMinutes int) int {
	return queueLen * perHeadMinutes
}
