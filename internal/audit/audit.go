// Package audit records order status changes. Entries are published to SQS
// for the worker to turn into metrics, and logged for operators. Callers emit
// an entry only when a transition actually happened, so replays and no-ops
// leave no duplicate trail.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/storelane/checkout/internal/aws"
	"github.com/storelane/checkout/internal/logging"
)

// Triggers identify what caused a status change.
const (
	TriggerWebhook = "payment_webhook"
	TriggerAdmin   = "admin_status_change"
)

// Entry is one order status change.
type Entry struct {
	AuditID    string    `json:"audit_id"`
	OrderRef   string    `json:"order_ref"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Trigger    string    `json:"trigger"`
	EventID    string    `json:"event_id,omitempty"`   // provider event for webhook triggers
	ActorID    string    `json:"actor_id,omitempty"`   // admin identity for manual changes
	OccurredAt time.Time `json:"occurred_at"`
}

// Recorder publishes audit entries.
type Recorder struct {
	publisher *aws.Publisher
	nowFunc   func() time.Time
}

// NewRecorder returns a Recorder publishing to the given queue.
func NewRecorder(publisher *aws.Publisher) *Recorder {
	return &Recorder{publisher: publisher, nowFunc: time.Now}
}

// OrderStatusChanged records one transition. Publishing is best-effort: the
// state change already committed, so an audit outage must not fail the
// request; it is logged instead.
func (r *Recorder) OrderStatusChanged(ctx context.Context, e Entry) {
	if e.AuditID == "" {
		e.AuditID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.nowFunc().UTC()
	}

	fields := logging.Fields{
		"audit_id":  e.AuditID,
		"order_ref": e.OrderRef,
		"from":      e.FromStatus,
		"to":        e.ToStatus,
		"trigger":   e.Trigger,
	}
	if e.EventID != "" {
		fields["event_id"] = e.EventID
	}
	logging.Info("order status changed", fields)

	body, err := json.Marshal(e)
	if err != nil {
		logging.Error("failed to marshal audit entry", logging.Fields{"audit_id": e.AuditID, "detail": err.Error()})
		return
	}
	attrs := map[string]string{
		"order_ref": e.OrderRef,
		"trigger":   e.Trigger,
	}
	if err := r.publisher.Publish(ctx, string(body), attrs); err != nil {
		logging.Error("failed to publish audit entry", logging.Fields{"audit_id": e.AuditID, "detail": err.Error()})
	}
}
