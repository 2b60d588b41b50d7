package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/storelane/checkout/internal/aws"
)

func main() {
	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	reapAfter := 15 * time.Minute
	if raw := os.Getenv("IDEMPOTENCY_REAP_AFTER"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid IDEMPOTENCY_REAP_AFTER %q: %v", raw, err)
		}
		reapAfter = d
	}

	p := NewProcessor(clients, os.Getenv("IDEMPOTENCY_TABLE"), reapAfter)

	// If RUN_LOCAL=true, simulate a single invocation for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		body := os.Getenv("LOCAL_EVENT_BODY")
		if body == "" {
			body = `{}`
		}
		if err := p.Handle(context.Background(), json.RawMessage(body)); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
