package metrics

import (
	"context"
	"sync"

	"github.com/salonrush/queue-broker/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	initOnce sync.Once

	queueJoins         *telemetry.Counter
	queueLeaves        *telemetry.Counter
	serviceCompletions *telemetry.Counter
	manualAdjustments  *telemetry.Counter
	rejectedRequests   *telemetry.Counter
	connectedSessions  *telemetry.UpDownCounter
	queueDepth         *telemetry.UpDownCounter
	transitionDuration *telemetry.Histogram
)

// Init registers all instruments on the global meter. Safe to call more
// than once; only the first call registers.
func Init() error {
	var err error
	initOnce.Do(func() {
		queueJoins, err = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "queue_joins_total",
			Description: "Customers appended to a salon queue",
		})
		if err != nil {
			return
		}
		queueLeaves, err = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "queue_leaves_total",
			Description: "Customers withdrawn from a salon queue",
		})
		if err != nil {
			return
		}
		serviceCompletions, err = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "service_completions_total",
			Description: "Customers marked as served",
		})
		if err != nil {
			return
		}
		manualAdjustments, err = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "manual_adjustments_total",
			Description: "Owner-side manual queue length adjustments",
		})
		if err != nil {
			return
		}
		rejectedRequests, err = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "rejected_requests_total",
			Description: "Transition requests rejected with an error event",
		})
		if err != nil {
			return
		}
		connectedSessions, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
			Name:        "connected_sessions",
			Description: "WebSocket sessions currently connected",
		})
		if err != nil {
			return
		}
		queueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
			Name:        "queue_depth",
			Description: "Customers currently waiting across all salons",
		})
		if err != nil {
			return
		}
		transitionDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
			Name:        "transition_duration_seconds",
			Description: "Time spent applying one queue transition",
			Unit:        "s",
		})
	})
	return err
}

func salonAttr(salonID string) attribute.KeyValue {
	return attribute.String("salon_id", salonID)
}

// RecordJoin counts one join and grows the depth gauge.
func RecordJoin(ctx context.Context, salonID string) {
	if queueJoins == nil || queueDepth == nil {
		return
	}
	queueJoins.Inc(ctx, salonAttr(salonID))
	queueDepth.Inc(ctx, salonAttr(salonID))
}

// RecordLeave counts one withdrawal and shrinks the depth gauge.
func RecordLeave(ctx context.Context, salonID string) {
	if queueLeaves == nil || queueDepth == nil {
		return
	}
	queueLeaves.Inc(ctx, salonAttr(salonID))
	queueDepth.Dec(ctx, salonAttr(salonID))
}

// RecordCompletion counts one completed service and shrinks the depth gauge.
func RecordCompletion(ctx context.Context, salonID string) {
	if serviceCompletions == nil || queueDepth == nil {
		return
	}
	serviceCompletions.Inc(ctx, salonAttr(salonID))
	queueDepth.Dec(ctx, salonAttr(salonID))
}

// RecordAdjustment counts one manual queue adjustment.
func RecordAdjustment(ctx context.Context, salonID string, change int) {
	if manualAdjustments == nil || queueDepth == nil {
		return
	}
	manualAdjustments.Inc(ctx, salonAttr(salonID))
	queueDepth.Add(ctx, int64(change), salonAttr(salonID))
}

// RecordRejection counts one rejected transition by error code.
func RecordRejection(ctx context.Context, code string) {
	if rejectedRequests == nil {
		return
	}
	rejectedRequests.Inc(ctx, attribute.String("code", code))
}

// SessionConnected grows the connected-session gauge.
func SessionConnected(ctx context.Context) {
	if connectedSessions == nil {
		return
	}
	connectedSessions.Inc(ctx)
}

// SessionDisconnected shrinks the connected-session gauge.
func SessionDisconnected(ctx context.Context) {
	if connectedSessions == nil {
		return
	}
	connectedSessions.Dec(ctx)
}

// RecordTransition records how long one transition took.
func RecordTransition(ctx context.Context, seconds float64, operation string) {
	if transitionDuration == nil {
		return
	}
	transitionDuration.Record(ctx, seconds, attribute.String("operation", operation))
}
