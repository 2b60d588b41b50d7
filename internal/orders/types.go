package orders

import "time"

// Order statuses
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusCancelled      = "CANCELLED"
	StatusFulfilled      = "FULFILLED"
)

// LineItem is one ordered product with its price snapshot taken at checkout.
type LineItem struct {
	ProductID      string `dynamodbav:"product_id" json:"product_id"`
	Name           string `dynamodbav:"name" json:"name"`
	UnitPriceMinor int64  `dynamodbav:"unit_price_minor" json:"unit_price_minor"`
	Quantity       int    `dynamodbav:"quantity" json:"quantity"`
}

// Order is the aggregate stored in the orders DynamoDB table. Line items are
// part of the aggregate item, so a single conditional write covers the whole
// order. Monetary amounts are integer minor units.
type Order struct {
	PublicID        string     `dynamodbav:"public_id" json:"public_id"` // externally addressable id
	CustomerEmail   string     `dynamodbav:"customer_email,omitempty" json:"customer_email,omitempty"`
	Status          string     `dynamodbav:"status" json:"status"`
	Currency        string     `dynamodbav:"currency" json:"currency"`
	SubtotalMinor   int64      `dynamodbav:"subtotal_minor" json:"subtotal_minor"`
	DiscountMinor   int64      `dynamodbav:"discount_minor" json:"discount_minor"`
	TaxMinor        int64      `dynamodbav:"tax_minor" json:"tax_minor"`
	TotalMinor      int64      `dynamodbav:"total_minor" json:"total_minor"`
	Items           []LineItem `dynamodbav:"items" json:"items"`
	PaymentIntentID string     `dynamodbav:"payment_intent_id,omitempty" json:"payment_intent_id,omitempty"`
	PaymentRef      string     `dynamodbav:"payment_ref,omitempty" json:"payment_ref,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `dynamodbav:"updated_at" json:"updated_at"`
}
