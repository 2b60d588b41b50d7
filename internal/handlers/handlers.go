package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/storelane/checkout/internal/apperr"
	"github.com/storelane/checkout/internal/audit"
	"github.com/storelane/checkout/internal/aws"
	"github.com/storelane/checkout/internal/catalog"
	"github.com/storelane/checkout/internal/idempotency"
	"github.com/storelane/checkout/internal/orders"
	"github.com/storelane/checkout/internal/payments"
	"github.com/storelane/checkout/internal/validation"
)

// Idempotency scopes, one per mutating operation type.
const (
	ScopeCheckoutCreate = "checkout.create"
	ScopePaymentIntent  = "payment.intent"
	ScopeOrderStatus    = "order.status"
)

// HandlerConfig groups dependencies for the HTTP surface.
type HandlerConfig struct {
	DynamoDBClient     aws.DynamoDBAPI
	SQSClient          aws.SQSAPI
	Gateway            payments.Gateway
	IdempotencyTable   string
	OrdersTable        string
	ProductsTable      string
	WebhookEventsTable string
	AuditQueueURL      string
	TTLWindow          time.Duration
}

// RegisterRoutes wires the checkout, payment, admin and webhook endpoints.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	ledger := idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow)
	executor := idempotency.NewExecutor(ledger)
	orderStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	catalogStore := catalog.NewStore(cfg.DynamoDBClient, cfg.ProductsTable)
	deduper := payments.NewDeduper(cfg.DynamoDBClient, cfg.WebhookEventsTable)
	recorder := audit.NewRecorder(aws.NewPublisher(cfg.SQSClient, cfg.AuditQueueURL))
	reconciler := payments.NewReconciler(cfg.Gateway, deduper, orderStore, recorder)

	h := &api{
		validate:   v,
		executor:   executor,
		orders:     orderStore,
		catalog:    catalogStore,
		gateway:    cfg.Gateway,
		reconciler: reconciler,
		audit:      recorder,
	}

	r.POST("/checkout", h.checkout)
	r.POST("/payments/:orderPublicId/intent", h.createPaymentIntent)
	r.PATCH("/admin/orders/:orderPublicId/status", h.changeOrderStatus)
	r.POST("/webhooks/payment-provider", h.paymentWebhook)
}

type api struct {
	validate   *validatorv10.Validate
	executor   *idempotency.Executor
	orders     *orders.Store
	catalog    *catalog.Store
	gateway    payments.Gateway
	reconciler *payments.Reconciler
	audit      *audit.Recorder
}

// requireIdempotencyKey extracts the Idempotency-Key header, writing a 400
// when absent or oversized.
func requireIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return "", false
	}
	if len(key) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency_key_too_long"})
		return "", false
	}
	return key, true
}

// writeOutcome sends an executor outcome as the response.
func writeOutcome(c *gin.Context, out idempotency.Outcome) {
	if out.StatusCode == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(out.StatusCode, "application/json", out.Body)
}

// writeError maps the error taxonomy onto HTTP.
func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.CodeOf(err)})
}
