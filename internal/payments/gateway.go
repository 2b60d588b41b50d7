// Package payments holds the gateway boundary to the external payment
// provider and the reconciliation engine that applies its webhooks to orders.
package payments

import "context"

// Event kinds the reconciler treats as "payment succeeded". The provider
// sends many other kinds; they are acknowledged and ignored.
const (
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// WebhookEvent is a verified, parsed provider notification.
type WebhookEvent struct {
	EventID           string // provider-assigned, globally unique
	Type              string
	OrderRef          string // order public id carried in event metadata
	PaymentRef        string
	CheckoutSessionID string
}

// PaymentIntent is the provider-side handle the storefront needs to collect
// payment.
type PaymentIntent struct {
	IntentID     string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway is the payment provider boundary. Signature verification failures
// and malformed payloads surface as BadRequest; transport failures as
// Unexpected.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, orderRef, idempotencyKey string) (*PaymentIntent, error)
	ParseWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// IsSuccessKind reports whether the event type implies a completed payment.
func IsSuccessKind(eventType string) bool {
	return eventType == EventPaymentIntentSucceeded || eventType == EventCheckoutSessionCompleted
}
