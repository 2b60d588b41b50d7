package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/audit"
	"github.com/storelane/checkout/internal/orders"
	"github.com/storelane/checkout/internal/validation"
)

// changeOrderStatus applies an operator-requested transition through the
// same state machine and conditional update that gate webhook transitions.
// Setting the status an order already has is a no-op 204, not a conflict.
func (h *api) changeOrderStatus(c *gin.Context) {
	orderID := c.Param("orderPublicId")

	var req validation.StatusChangeRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	key, ok := requireIdempotencyKey(c)
	if !ok {
		return
	}

	// the order id joins the fingerprint so one key cannot silently span
	// two different orders
	fingerprinted := struct {
		OrderPublicID string `json:"order_public_id"`
		Status        string `json:"status"`
	}{orderID, req.Status}

	out, err := h.executor.Execute(c.Request.Context(), ScopeOrderStatus, key, fingerprinted, http.StatusNoContent, func(ctx context.Context) (interface{}, error) {
		return nil, h.applyStatusChange(ctx, orderID, req.Status)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *api) applyStatusChange(ctx context.Context, orderID, target string) error {
	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		return apperr.Unexpected("order_read_failed", err)
	}
	if order == nil {
		return apperr.NotFound("order_not_found")
	}

	if order.Status == target {
		// no-op success, no audit entry: nothing changed
		return nil
	}
	if !orders.IsTransitionAllowed(order.Status, target) {
		return apperr.Conflict("invalid_transition")
	}

	if err := h.orders.UpdateStatus(ctx, orderID, order.Status, target); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			// a webhook or another operator moved the order first
			return apperr.Conflict("invalid_transition")
		}
		return apperr.Unexpected("order_update_failed", err)
	}

	h.audit.OrderStatusChanged(ctx, audit.Entry{
		OrderRef:   orderID,
		FromStatus: order.Status,
		ToStatus:   target,
		Trigger:    audit.TriggerAdmin,
	})
	return nil
}
