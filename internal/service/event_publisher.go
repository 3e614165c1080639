package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/salonrush/queue-broker/internal/domain"
	"github.com/salonrush/queue-broker/pkg/kafka"
	"github.com/salonrush/queue-broker/pkg/logger"
	"go.uber.org/zap"
)

// EventPublisher emits queue lifecycle records after a transition commits.
// Publishing is best-effort: a failed or slow feed never delays or rolls
// back a transition.
type EventPublisher interface {
	Publish(event *domain.QueueEvent)
	Close()
}

// NoOpPublisher discards every event. It is the fallback when Kafka is
// disabled or unreachable at startup.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(*domain.QueueEvent) {}
func (NoOpPublisher) Close()                     {}

// KafkaPublisher forwards lifecycle events to a Kafka topic through a
// single worker goroutine, so events for the same salon reach the broker
// in the order their transitions committed.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger

	events    chan *domain.QueueEvent
	closeOnce sync.Once
	done      chan struct{}
}

// NewKafkaPublisher creates a publisher and starts its worker.
func NewKafkaPublisher(producer *kafka.Producer, topic string, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log,
		events:   make(chan *domain.QueueEvent, 256),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues an event without blocking. Events are dropped when the
// buffer is full.
func (p *KafkaPublisher) Publish(event *domain.QueueEvent) {
	select {
	case p.events <- event:
	default:
		p.log.Warn("event feed buffer full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("salon_id", event.SalonID))
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for event := range p.events {
		p.produce(event)
	}
}

func (p *KafkaPublisher) produce(event *domain.QueueEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal queue event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   map[string]string{"event_type": string(event.Type)},
		Timestamp: event.Timestamp,
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		p.log.Error("publish queue event",
			zap.String("type", string(event.Type)),
			zap.String("salon_id", event.SalonID),
			zap.Error(err))
	}
}

// Close drains buffered events, then closes the producer.
func (p *KafkaPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.events)
		select {
		case <-p.done:
		case <-time.After(10 * time.Second):
			p.log.Warn("timed out draining event feed")
		}
		p.producer.Close()
	})
}
