package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/storelane/checkout/internal/aws"
	"github.com/storelane/checkout/internal/handlers"
	"github.com/storelane/checkout/internal/payments"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	ttlWindow := 48 * time.Hour
	if raw := os.Getenv("IDEMPOTENCY_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid IDEMPOTENCY_TTL %q: %v", raw, err)
		}
		ttlWindow = d
	}

	gateway := payments.NewProviderClient(
		os.Getenv("PAYMENT_PROVIDER_URL"),
		os.Getenv("PAYMENT_PROVIDER_SECRET"),
		os.Getenv("PAYMENT_WEBHOOK_SECRET"),
	)

	cfg := handlers.HandlerConfig{
		DynamoDBClient:     clients.DynamoDB,
		SQSClient:          clients.SQS,
		Gateway:            gateway,
		IdempotencyTable:   os.Getenv("IDEMPOTENCY_TABLE"),
		OrdersTable:        os.Getenv("ORDERS_TABLE"),
		ProductsTable:      os.Getenv("PRODUCTS_TABLE"),
		WebhookEventsTable: os.Getenv("WEBHOOK_EVENTS_TABLE"),
		AuditQueueURL:      os.Getenv("AUDIT_QUEUE_URL"),
		TTLWindow:          ttlWindow,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
