package payments

import (
	"context"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/audit"
	"github.com/storelane/checkout/internal/logging"
	"github.com/storelane/checkout/internal/orders"
)

// orderStore is the slice of the orders store the reconciler needs.
type orderStore interface {
	Get(ctx context.Context, publicID string) (*orders.Order, error)
	MarkPaid(ctx context.Context, publicID, paymentRef string) (bool, error)
}

// auditRecorder records status changes that actually happened.
type auditRecorder interface {
	OrderStatusChanged(ctx context.Context, e audit.Entry)
}

// Reconciler turns provider webhooks into order state changes, exactly once,
// under retries, duplicates and out-of-order delivery.
type Reconciler struct {
	gateway Gateway
	deduper *Deduper
	orders  orderStore
	audit   auditRecorder
}

// NewReconciler wires the reconciliation pipeline.
func NewReconciler(gateway Gateway, deduper *Deduper, orderStore orderStore, recorder auditRecorder) *Reconciler {
	return &Reconciler{gateway: gateway, deduper: deduper, orders: orderStore, audit: recorder}
}

// HandleWebhook processes one raw delivery. A nil return means the provider
// should receive 2xx — including duplicates and ignored event kinds, which
// must never trigger provider-side retry storms.
//
// The guard row is inserted only after the state application path succeeded;
// until then a transient failure leaves no trace, so provider redelivery
// retries the whole pipeline. At-most-once for the order effect is carried by
// the conditional MarkPaid, not by the guard row.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := r.gateway.ParseWebhookEvent(payload, signatureHeader)
	if err != nil {
		return err
	}

	fields := logging.Fields{"event_id": event.EventID, "event_type": event.Type}

	seen, err := r.deduper.Seen(ctx, event.EventID)
	if err != nil {
		return apperr.Unexpected("dedup_check_failed", err)
	}
	if seen {
		logging.Info("duplicate webhook delivery acknowledged", fields)
		return nil
	}

	if !IsSuccessKind(event.Type) {
		logging.Info("ignoring webhook event type", fields)
		return nil
	}

	if event.OrderRef == "" {
		return apperr.BadRequest("missing_order_reference", nil)
	}

	order, err := r.orders.Get(ctx, event.OrderRef)
	if err != nil {
		return apperr.Unexpected("order_read_failed", err)
	}
	if order == nil {
		return apperr.BadRequest("unknown_order_reference", nil)
	}
	// Snapshot for the audit comparison only. The update below is gated by
	// the storage-layer condition, not by this read.
	statusBefore := order.Status

	changed, err := r.orders.MarkPaid(ctx, event.OrderRef, event.PaymentRef)
	if err != nil {
		return apperr.Unexpected("order_update_failed", err)
	}

	if changed {
		r.audit.OrderStatusChanged(ctx, audit.Entry{
			OrderRef:   event.OrderRef,
			FromStatus: statusBefore,
			ToStatus:   orders.StatusPaid,
			Trigger:    audit.TriggerWebhook,
			EventID:    event.EventID,
		})
	} else {
		logging.Info("payment webhook was a no-op", fields.With(logging.Fields{
			"order_ref":     event.OrderRef,
			"status_before": statusBefore,
		}))
	}

	if _, err := r.deduper.TryMarkProcessed(ctx, event.EventID, event.Type, event.OrderRef, event.PaymentRef); err != nil {
		// The order effect is committed; failing here lets the provider
		// redeliver, which the conditional update absorbs as a no-op.
		return apperr.Unexpected("dedup_mark_failed", err)
	}

	return nil
}
