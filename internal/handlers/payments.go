package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/orders"
	"github.com/storelane/checkout/internal/validation"
)

// createPaymentIntent registers a payment intent with the provider for a
// PENDING_PAYMENT order. The client's idempotency key guards our side and is
// forwarded to the provider so its retries collapse too.
func (h *api) createPaymentIntent(c *gin.Context) {
	orderID := c.Param("orderPublicId")

	key, ok := requireIdempotencyKey(c)
	if !ok {
		return
	}

	req := validation.IntentRequest{OrderPublicID: orderID}
	out, err := h.executor.Execute(c.Request.Context(), ScopePaymentIntent, key, req, http.StatusOK, func(ctx context.Context) (interface{}, error) {
		order, err := h.orders.Get(ctx, orderID)
		if err != nil {
			return nil, apperr.Unexpected("order_read_failed", err)
		}
		if order == nil {
			return nil, apperr.NotFound("order_not_found")
		}
		if order.Status != orders.StatusPendingPayment {
			return nil, apperr.Conflict("order_not_payable")
		}

		intent, err := h.gateway.CreatePaymentIntent(ctx, order.TotalMinor, order.Currency, order.PublicID, key)
		if err != nil {
			return nil, err
		}
		if err := h.orders.SetPaymentIntent(ctx, order.PublicID, intent.IntentID); err != nil {
			return nil, apperr.Unexpected("order_update_failed", err)
		}
		return intent, nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

// paymentWebhook receives raw provider deliveries. Duplicates and ignored
// event kinds are acknowledged with 2xx; unverifiable or malformed payloads
// get 400; transient store failures get 5xx so the provider redelivers.
func (h *api) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	if err := h.reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Webhook-Signature")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
