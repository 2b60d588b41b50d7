package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/storelane/checkout/internal/audit"
	"github.com/storelane/checkout/internal/aws"
	"github.com/storelane/checkout/internal/idempotency"
	"github.com/storelane/checkout/internal/logging"
)

const metricNamespace = "Storelane/Checkout"

// Processor turns audit entries from the queue into CloudWatch metrics and,
// on scheduled invocations, reaps stuck idempotency records.
type Processor struct {
	cloudwatch aws.CloudWatchAPI
	ledger     *idempotency.Store
	reapAfter  time.Duration
}

// NewProcessor wires the worker against injected AWS clients.
func NewProcessor(clients *aws.AWSClients, idempotencyTable string, reapAfter time.Duration) *Processor {
	return &Processor{
		cloudwatch: clients.CloudWatch,
		// the ttl window only matters when inserting records; the reaper never does
		ledger:    idempotency.NewStore(clients.DynamoDB, idempotencyTable, 0),
		reapAfter: reapAfter,
	}
}

// Handle dispatches on the raw event shape: SQS batches carry audit entries,
// anything else is treated as the scheduled reaper tick.
func (p *Processor) Handle(ctx context.Context, raw json.RawMessage) error {
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(raw, &sqsEvent); err == nil && len(sqsEvent.Records) > 0 {
		return p.handleAuditBatch(ctx, sqsEvent)
	}
	return p.handleScheduled(ctx)
}

func (p *Processor) handleAuditBatch(ctx context.Context, ev events.SQSEvent) error {
	data := make([]cwtypes.MetricDatum, 0, len(ev.Records))
	for _, rec := range ev.Records {
		var entry audit.Entry
		if err := json.Unmarshal([]byte(rec.Body), &entry); err != nil {
			// malformed entry: returning the error would redeliver forever,
			// so log and drop it
			logging.Error("dropping malformed audit entry", logging.Fields{
				"message_id": rec.MessageId, "detail": err.Error(),
			})
			continue
		}

		ts := entry.OccurredAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		data = append(data, cwtypes.MetricDatum{
			MetricName: awssdk.String("OrderStatusChanged"),
			Timestamp:  awssdk.Time(ts),
			Value:      awssdk.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: awssdk.String("Transition"), Value: awssdk.String(entry.FromStatus + ":" + entry.ToStatus)},
				{Name: awssdk.String("Trigger"), Value: awssdk.String(entry.Trigger)},
			},
		})
	}

	if len(data) == 0 {
		return nil
	}

	_, err := p.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awssdk.String(metricNamespace),
		MetricData: data,
	})
	if err != nil {
		// returning the error lets Lambda redeliver the batch
		return fmt.Errorf("put metric data: %w", err)
	}

	logging.Info("published audit metrics", logging.Fields{"count": len(data)})
	return nil
}

func (p *Processor) handleScheduled(ctx context.Context) error {
	reaped, err := p.ledger.ReapStuck(ctx, p.reapAfter)
	if err != nil {
		return fmt.Errorf("reap stuck records: %w", err)
	}
	logging.Info("reaper pass finished", logging.Fields{"reaped": reaped})
	return nil
}
