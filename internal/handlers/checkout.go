package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/orders"
	"github.com/storelane/checkout/internal/validation"
)

// orderSummary is the checkout response body.
type orderSummary struct {
	OrderPublicID string            `json:"order_public_id"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	SubtotalMinor int64             `json:"subtotal_minor"`
	DiscountMinor int64             `json:"discount_minor"`
	TaxMinor      int64             `json:"tax_minor"`
	TotalMinor    int64             `json:"total_minor"`
	Items         []orders.LineItem `json:"items"`
}

// checkout creates an order from validated line items. The whole operation
// runs under the idempotency executor: a double-clicked submit creates one
// order and both callers see the same 201.
func (h *api) checkout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	key, ok := requireIdempotencyKey(c)
	if !ok {
		return
	}

	out, err := h.executor.Execute(c.Request.Context(), ScopeCheckoutCreate, key, req, http.StatusCreated, func(ctx context.Context) (interface{}, error) {
		return h.createOrder(ctx, req)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOutcome(c, out)
}

func (h *api) createOrder(ctx context.Context, req validation.CheckoutRequest) (*orderSummary, error) {
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}

	products, err := h.catalog.GetActive(ctx, ids)
	if err != nil {
		return nil, apperr.Unexpected("catalog_lookup_failed", err)
	}

	order := orders.Order{
		PublicID:      uuid.NewString(),
		CustomerEmail: req.CustomerEmail,
		Status:        orders.StatusPendingPayment,
	}
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			// covers both unknown ids and deactivated products
			return nil, apperr.NotFound("unknown_product")
		}
		if order.Currency == "" {
			order.Currency = p.Currency
		} else if order.Currency != p.Currency {
			return nil, apperr.BadRequest("mixed_currencies", nil)
		}
		order.Items = append(order.Items, orders.LineItem{
			ProductID:      p.ProductID,
			Name:           p.Name,
			UnitPriceMinor: p.PriceMinor,
			Quantity:       it.Quantity,
		})
		order.SubtotalMinor += p.PriceMinor * int64(it.Quantity)
	}
	order.TotalMinor = order.SubtotalMinor - order.DiscountMinor + order.TaxMinor

	if err := h.orders.Create(ctx, order); err != nil {
		return nil, apperr.Unexpected("order_create_failed", err)
	}

	return &orderSummary{
		OrderPublicID: order.PublicID,
		Status:        order.Status,
		Currency:      order.Currency,
		SubtotalMinor: order.SubtotalMinor,
		DiscountMinor: order.DiscountMinor,
		TaxMinor:      order.TaxMinor,
		TotalMinor:    order.TotalMinor,
		Items:         order.Items,
	}, nil
}
