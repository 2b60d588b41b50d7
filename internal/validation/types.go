package validation

// CheckoutItem is a single requested line item.
type CheckoutItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// CheckoutRequest is the payload for POST /checkout. Prices and totals are
// never client-claimed; they are resolved from the catalog server-side.
type CheckoutRequest struct {
	CustomerEmail string         `json:"customer_email,omitempty" validate:"omitempty,email"`
	Items         []CheckoutItem `json:"items" validate:"required,min=1,dive"` // at least one item
}

// StatusChangeRequest is the payload for PATCH /admin/orders/:id/status.
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// IntentRequest is the payload for POST /payments/:id/intent. The body is
// empty today; the type exists so the idempotency fingerprint has a stable
// shape to hash.
type IntentRequest struct {
	OrderPublicID string `json:"order_public_id" validate:"required"`
}
