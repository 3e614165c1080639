package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/internal/dto"
	"github.com/salonrush/queue-broker/internal/hub"
	"github.com/salonrush/queue-broker/internal/metrics"
	"github.com/salonrush/queue-broker/pkg/logger"
	"github.com/salonrush/queue-broker/pkg/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sink is the delivery surface the queue service emits events through.
// The hub satisfies it; tests substitute a recording fake.
type Sink interface {
	Subscribe(s *hub.Session, salonID string)
	Unsubscribe(s *hub.Session, salonID string)
	Broadcast(salonID string, evt dto.Event)
	BroadcastRole(salonID string, role domain.Role, evt dto.Event)
	SendTo(s *hub.Session, evt dto.Event)
	SendToConn(connID string, evt dto.Event)
	SendToUser(userID string, evt dto.Event)
}

// Config holds queue behavior settings.
type Config struct {
	PerHeadMinutes        int
	WalkInServiceName     string
	WalkInDurationMinutes int
}

// QueueService owns all salon queue state and applies every transition.
// Each salon has its own lock; a transition mutates the queue and emits
// its events while holding that lock, so every room observes broadcasts
// in the exact order transitions committed. Holding the lock through
// fan-out is safe because delivery into session outboxes never blocks.
type QueueService struct {
	cfg       Config
	sink      Sink
	publisher EventPublisher
	passes    *TurnPassIssuer
	log       *logger.Logger

	mu     sync.RWMutex
	salons map[string]*salonState
}

type salonState struct {
	mu    sync.Mutex
	queue *domain.SalonQueue
}

// NewQueueService creates the coordinator. A nil publisher is replaced
// with a no-op one.
func NewQueueService(cfg Config, sink Sink, publisher EventPublisher, passes *TurnPassIssuer, log *logger.Logger) *QueueService {
	if cfg.PerHeadMinutes <= 0 {
		cfg.PerHeadMinutes = 5
	}
	if cfg.WalkInServiceName == "" {
		cfg.WalkInServiceName = "Walk-in"
	}
	if cfg.WalkInDurationMinutes <= 0 {
		cfg.WalkInDurationMinutes = cfg.PerHeadMinutes
	}
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	return &QueueService{
		cfg:       cfg,
		sink:      sink,
		publisher: publisher,
		passes:    passes,
		log:       log,
		salons:    make(map[string]*salonState),
	}
}

// getSalon returns the state for a salon, creating an open empty queue on
// first reference.
func (s *QueueService) getSalon(salonID string) *salonState {
	s.mu.RLock()
	st, ok := s.salons[salonID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.salons[salonID]; ok {
		return st
	}
	st = &salonState{queue: domain.NewSalonQueue(salonID)}
	s.salons[salonID] = st
	return st
}

// JoinRoom subscribes the session to a salon's room and sends it a full
// state snapshot.
func (s *QueueService) JoinRoom(ctx context.Context, sess *hub.Session, req *dto.JoinRoomRequest) error {
	_, span := telemetry.StartSpan(ctx, "queue.join_room",
		trace.WithAttributes(attribute.String("salon_id", req.SalonID)))
	defer span.End()

	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}

	st := s.getSalon(req.SalonID)
	s.sink.Subscribe(sess, req.SalonID)

	st.mu.Lock()
	defer st.mu.Unlock()
	s.sink.SendTo(sess, dto.Event{Name: dto.EventSalonData, Payload: s.snapshotLocked(st.queue)})
	return nil
}

// LeaveRoom unsubscribes the session from a salon's room.
func (s *QueueService) LeaveRoom(ctx context.Context, sess *hub.Session, req *dto.LeaveRoomRequest) error {
	_, span := telemetry.StartSpan(ctx, "queue.leave_room")
	defer span.End()

	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}
	s.sink.Unsubscribe(sess, req.SalonID)
	return nil
}

// JoinQueue appends the requester to the salon's waiting line.
func (s *QueueService) JoinQueue(ctx context.Context, sess *hub.Session, req *dto.JoinQueueRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.join",
		trace.WithAttributes(attribute.String("salon_id", req.SalonID)))
	defer span.End()
	defer s.observe(ctx, "join")()

	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}

	entry := domain.NewQueueEntry(uuid.NewString(), req.CustomerName, req.CustomerPhone,
		req.CustomerEmail, req.SelectedServices, req.PaymentReference, sess.ID)
	if err := entry.Validate(); err != nil {
		return spanErr(span, err)
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if req.SalonName != "" {
		st.queue.Name = req.SalonName
	}
	if !st.queue.IsOpen {
		return spanErr(span, domain.ErrSalonClosed)
	}

	position := st.queue.Append(entry)
	span.SetAttributes(attribute.Int("position", position))

	s.sink.SendTo(sess, dto.Event{Name: dto.EventQueueJoined, Payload: dto.QueueJoined{
		CustomerID:        entry.CustomerID,
		Position:          position,
		EstimatedWaitTime: domain.EstimateWait(position, s.cfg.PerHeadMinutes),
	}})
	s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, false))
	s.sink.BroadcastRole(req.SalonID, domain.RoleOwner, dto.Event{
		Name: dto.EventCustomerJoinedQueue,
		Payload: dto.CustomerJoinedQueue{
			SalonID:           req.SalonID,
			QueueLength:       st.queue.Len(),
			EstimatedWaitTime: domain.EstimateJoinWait(st.queue.Len(), s.cfg.PerHeadMinutes),
			Customer:          entry,
		},
	})

	evt := domain.NewQueueEvent(domain.QueueEventJoined, uuid.NewString(), st.queue, entry.CustomerID)
	evt.TotalAmount = entry.TotalAmount.String()
	s.publisher.Publish(evt)
	metrics.RecordJoin(ctx, req.SalonID)

	s.log.Info("customer joined queue",
		zap.String("salon_id", req.SalonID),
		zap.String("customer_id", entry.CustomerID),
		zap.Int("position", position))
	return nil
}

// LeaveQueue withdraws a waiting customer and closes the gap.
func (s *QueueService) LeaveQueue(ctx context.Context, sess *hub.Session, req *dto.LeaveQueueRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.leave",
		trace.WithAttributes(attribute.String("salon_id", req.SalonID)))
	defer span.End()
	defer s.observe(ctx, "leave")()

	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}
	if req.CustomerID == "" {
		return spanErr(span, domain.ErrInvalidRequest)
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := st.queue.IndexOf(req.CustomerID)
	if idx < 0 {
		return spanErr(span, domain.ErrEntryNotFound)
	}
	entry := st.queue.RemoveAt(idx)

	left := dto.Event{Name: dto.EventQueueLeft, Payload: dto.QueueLeft{
		SalonID: req.SalonID,
		Message: "You have left the queue",
	}}
	s.sink.SendTo(sess, left)
	if entry.SessionID != "" && entry.SessionID != sess.ID {
		s.sink.SendToConn(entry.SessionID, left)
	}
	s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, false))
	s.notifyPositionsLocked(st.queue, idx)

	evt := domain.NewQueueEvent(domain.QueueEventLeft, uuid.NewString(), st.queue, entry.CustomerID)
	evt.TotalAmount = entry.TotalAmount.String()
	s.publisher.Publish(evt)
	metrics.RecordLeave(ctx, req.SalonID)

	s.log.Info("customer left queue",
		zap.String("salon_id", req.SalonID),
		zap.String("customer_id", entry.CustomerID))
	return nil
}

// CompleteService removes a served customer and promotes the line. When
// the head was served, the new head receives a your-turn event carrying a
// signed turn pass.
func (s *QueueService) CompleteService(ctx context.Context, sess *hub.Session, req *dto.CompleteServiceRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.complete",
		trace.WithAttributes(attribute.String("salon_id", req.SalonID)))
	defer span.End()
	defer s.observe(ctx, "complete")()

	if sess.Role != domain.RoleOwner {
		return spanErr(span, domain.ErrUnauthorized)
	}
	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.queue.Len() == 0 {
		return spanErr(span, fmt.Errorf("%w: queue is empty", domain.ErrInvalidState))
	}
	idx := st.queue.IndexOf(req.CustomerID)
	if idx < 0 {
		return spanErr(span, domain.ErrEntryNotFound)
	}
	entry := st.queue.RemoveAt(idx)

	if entry.SessionID != "" {
		s.sink.SendToConn(entry.SessionID, dto.Event{Name: dto.EventServiceCompleted, Payload: dto.ServiceCompleted{
			SalonID:   req.SalonID,
			SalonName: st.queue.DisplayName(),
		}})
	}
	s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, false))
	s.notifyPositionsLocked(st.queue, idx)
	if idx == 0 {
		s.notifyTurnLocked(st.queue)
	}

	evt := domain.NewQueueEvent(domain.QueueEventCompleted, uuid.NewString(), st.queue, entry.CustomerID)
	evt.TotalAmount = entry.TotalAmount.String()
	s.publisher.Publish(evt)
	metrics.RecordCompletion(ctx, req.SalonID)

	s.log.Info("service completed",
		zap.String("salon_id", req.SalonID),
		zap.String("customer_id", entry.CustomerID),
		zap.String("total_amount", entry.TotalAmount.String()))
	return nil
}

// AdjustQueue applies an owner-side manual length change of exactly one.
// An increment appends a synthetic walk-in entry; a decrement removes the
// tail entry.
func (s *QueueService) AdjustQueue(ctx context.Context, sess *hub.Session, req *dto.UpdateQueueRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.adjust",
		trace.WithAttributes(
			attribute.String("salon_id", req.SalonID),
			attribute.Int("change", req.Change)))
	defer span.End()
	defer s.observe(ctx, "adjust")()

	if sess.Role != domain.RoleOwner {
		return spanErr(span, domain.ErrUnauthorized)
	}
	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}
	if req.Change != 1 && req.Change != -1 {
		return spanErr(span, fmt.Errorf("%w: change must be 1 or -1", domain.ErrInvalidRequest))
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if req.Change == 1 {
		entry := domain.NewQueueEntry(uuid.NewString(), s.cfg.WalkInServiceName, "", "",
			[]domain.SelectedService{{
				ServiceID:       "walk-in",
				Name:            s.cfg.WalkInServiceName,
				DurationMinutes: s.cfg.WalkInDurationMinutes,
				Price:           decimal.Zero,
			}}, "", "")
		st.queue.Append(entry)
		s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, false))
		s.sink.BroadcastRole(req.SalonID, domain.RoleOwner, dto.Event{
			Name: dto.EventCustomerJoinedQueue,
			Payload: dto.CustomerJoinedQueue{
				SalonID:           req.SalonID,
				QueueLength:       st.queue.Len(),
				EstimatedWaitTime: domain.EstimateJoinWait(st.queue.Len(), s.cfg.PerHeadMinutes),
				Customer:          entry,
			},
		})
		s.publisher.Publish(domain.NewQueueEvent(domain.QueueEventJoined, uuid.NewString(), st.queue, entry.CustomerID))
	} else {
		if st.queue.Len() == 0 {
			return spanErr(span, fmt.Errorf("%w: queue is empty", domain.ErrInvalidState))
		}
		entry := st.queue.RemoveAt(st.queue.Len() - 1)
		if entry.SessionID != "" {
			s.sink.SendToConn(entry.SessionID, dto.Event{Name: dto.EventQueueLeft, Payload: dto.QueueLeft{
				SalonID: req.SalonID,
				Message: "You were removed from the queue",
			}})
		}
		s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, false))
		s.publisher.Publish(domain.NewQueueEvent(domain.QueueEventLeft, uuid.NewString(), st.queue, entry.CustomerID))
	}

	metrics.RecordAdjustment(ctx, req.SalonID, req.Change)
	s.log.Info("queue adjusted manually",
		zap.String("salon_id", req.SalonID),
		zap.Int("change", req.Change),
		zap.Int("queue_length", st.queue.Len()))
	return nil
}

// ToggleStatus opens or closes a salon for new joins. Waiting customers
// are never affected.
func (s *QueueService) ToggleStatus(ctx context.Context, sess *hub.Session, req *dto.ToggleStatusRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.toggle_status",
		trace.WithAttributes(
			attribute.String("salon_id", req.SalonID),
			attribute.Bool("is_open", req.IsOpen)))
	defer span.End()

	if sess.Role != domain.RoleOwner {
		return spanErr(span, domain.ErrUnauthorized)
	}
	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if req.SalonName != "" {
		st.queue.Name = req.SalonName
	}
	st.queue.IsOpen = req.IsOpen

	s.sink.Broadcast(req.SalonID, dto.Event{Name: dto.EventSalonStatusChanged, Payload: dto.SalonStatusChanged{
		SalonID: req.SalonID,
		IsOpen:  req.IsOpen,
	}})
	s.publisher.Publish(domain.NewQueueEvent(domain.QueueEventStatusChanged, uuid.NewString(), st.queue, ""))

	s.log.Info("salon status changed",
		zap.String("salon_id", req.SalonID),
		zap.Bool("is_open", req.IsOpen))
	return nil
}

// MoveUp swaps a customer with the entry directly ahead of them.
func (s *QueueService) MoveUp(ctx context.Context, sess *hub.Session, req *dto.MoveUpRequest) error {
	ctx, span := telemetry.StartSpan(ctx, "queue.move_up",
		trace.WithAttributes(attribute.String("salon_id", req.SalonID)))
	defer span.End()
	defer s.observe(ctx, "move_up")()

	if sess.Role != domain.RoleOwner {
		return spanErr(span, domain.ErrUnauthorized)
	}
	if req.SalonID == "" {
		return spanErr(span, domain.ErrInvalidSalonID)
	}

	st := s.getSalon(req.SalonID)
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := st.queue.IndexOf(req.CustomerID)
	if idx < 0 {
		return spanErr(span, domain.ErrEntryNotFound)
	}
	if idx == 0 {
		return spanErr(span, fmt.Errorf("%w: customer is already at the front", domain.ErrInvalidState))
	}
	st.queue.SwapUp(idx)

	s.sink.Broadcast(req.SalonID, s.queueUpdatedLocked(st.queue, true))
	s.notifyPositionRangeLocked(st.queue, idx-1, idx)

	s.log.Info("customer moved up",
		zap.String("salon_id", req.SalonID),
		zap.String("customer_id", req.CustomerID),
		zap.Int("position", idx))
	return nil
}

// Notify relays a notification to every session of one user.
func (s *QueueService) Notify(ctx context.Context, sess *hub.Session, req *dto.SendNotificationRequest) error {
	_, span := telemetry.StartSpan(ctx, "queue.notify")
	defer span.End()

	if req.TargetUserID == "" {
		return spanErr(span, domain.ErrInvalidRequest)
	}
	s.sink.SendToUser(req.TargetUserID, dto.Event{Name: dto.EventNotification, Payload: req.Notification})
	return nil
}

// SalonCount returns how many salons have state.
func (s *QueueService) SalonCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.salons)
}

// WaitingTotal returns the number of customers waiting across all salons.
func (s *QueueService) WaitingTotal() int {
	s.mu.RLock()
	states := make([]*salonState, 0, len(s.salons))
	for _, st := range s.salons {
		states = append(states, st)
	}
	s.mu.RUnlock()

	total := 0
	for _, st := range states {
		st.mu.Lock()
		total += st.queue.Len()
		st.mu.Unlock()
	}
	return total
}

// snapshotLocked builds the salon-data payload. Caller holds the salon lock.
func (s *QueueService) snapshotLocked(q *domain.SalonQueue) dto.SalonData {
	customers := make([]*domain.QueueEntry, len(q.Waiting))
	copy(customers, q.Waiting)
	return dto.SalonData{
		SalonID:           q.SalonID,
		SalonName:         q.DisplayName(),
		IsOpen:            q.IsOpen,
		CurrentQueue:      q.Len(),
		EstimatedWaitTime: domain.EstimateJoinWait(q.Len(), s.cfg.PerHeadMinutes),
		Customers:         customers,
	}
}

// queueUpdatedLocked builds the room broadcast for the current queue.
// Caller holds the salon lock.
func (s *QueueService) queueUpdatedLocked(q *domain.SalonQueue, withCustomers bool) dto.Event {
	payload := dto.QueueUpdated{
		SalonID:           q.SalonID,
		CurrentQueue:      q.Len(),
		EstimatedWaitTime: domain.EstimateJoinWait(q.Len(), s.cfg.PerHeadMinutes),
	}
	if withCustomers {
		payload.Customers = make([]*domain.QueueEntry, len(q.Waiting))
		copy(payload.Customers, q.Waiting)
	}
	return dto.Event{Name: dto.EventQueueUpdated, Payload: payload}
}

// notifyPositionsLocked sends position-updated to every entry at or after
// fromIdx. Caller holds the salon lock.
func (s *QueueService) notifyPositionsLocked(q *domain.SalonQueue, fromIdx int) {
	s.notifyPositionRangeLocked(q, fromIdx, q.Len()-1)
}

func (s *QueueService) notifyPositionRangeLocked(q *domain.SalonQueue, fromIdx, toIdx int) {
	for i := fromIdx; i <= toIdx && i < q.Len(); i++ {
		if i < 0 {
			continue
		}
		e := q.Waiting[i]
		if e.SessionID == "" {
			continue
		}
		position := i + 1
		s.sink.SendToConn(e.SessionID, dto.Event{Name: dto.EventPositionUpdated, Payload: dto.PositionUpdated{
			SalonID:           q.SalonID,
			Position:          position,
			EstimatedWaitTime: domain.EstimateWait(position, s.cfg.PerHeadMinutes),
		}})
	}
}

// notifyTurnLocked tells the current head it is their turn, attaching a
// signed turn pass when the issuer is configured. Caller holds the salon
// lock.
func (s *QueueService) notifyTurnLocked(q *domain.SalonQueue) {
	head := q.Head()
	if head == nil || head.SessionID == "" {
		return
	}

	var pass string
	if s.passes != nil {
		signed, err := s.passes.Issue(q.SalonID, head.CustomerID)
		if err != nil {
			s.log.Error("issue turn pass",
				zap.String("salon_id", q.SalonID),
				zap.String("customer_id", head.CustomerID),
				zap.Error(err))
		} else {
			pass = signed
		}
	}

	s.sink.SendToConn(head.SessionID, dto.Event{Name: dto.EventYourTurn, Payload: dto.YourTurn{
		SalonID:   q.SalonID,
		SalonName: q.DisplayName(),
		Message:   "It's your turn! Please proceed to the counter.",
		TurnPass:  pass,
	}})
}

// observe returns a closure recording the transition duration.
func (s *QueueService) observe(ctx context.Context, operation string) func() {
	start := time.Now()
	return func() {
		metrics.RecordTransition(ctx, time.Since(start).Seconds(), operation)
	}
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
