package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/storelane/checkout/internal/aws"
)

// ProcessedEvent is the append-only guard row for one provider event.
// Rows are inserted once and never updated or deleted (audit retention).
type ProcessedEvent struct {
	EventID    string    `dynamodbav:"event_id"` // PK, provider-assigned
	EventType  string    `dynamodbav:"event_type"`
	OrderRef   string    `dynamodbav:"order_ref,omitempty"`
	PaymentRef string    `dynamodbav:"payment_ref,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// Deduper tracks which provider events already took effect.
type Deduper struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDeduper creates a Deduper over the processed-events table.
func NewDeduper(client aws.DynamoDBAPI, tableName string) *Deduper {
	return &Deduper{client: client, tableName: tableName, nowFunc: time.Now}
}

// Seen reports whether the event already has a guard row. Used to
// short-circuit provider redeliveries before any work happens.
func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	out, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &d.tableName,
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
	})
	if err != nil {
		return false, fmt.Errorf("get processed event: %w", err)
	}
	return len(out.Item) > 0, nil
}

// TryMarkProcessed inserts the guard row. Returns true when this caller was
// first; false when a concurrent delivery already inserted it. The
// conditional insert is atomic at the storage layer, so concurrent
// deliveries of the same event elect exactly one winner.
func (d *Deduper) TryMarkProcessed(ctx context.Context, eventID, eventType, orderRef, paymentRef string) (bool, error) {
	rec := ProcessedEvent{
		EventID:    eventID,
		EventType:  eventType,
		OrderRef:   orderRef,
		PaymentRef: paymentRef,
		CreatedAt:  d.nowFunc().UTC(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal processed event: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(event_id)"),
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put processed event: %w", err)
	}
	return true, nil
}

func awsString(s string) *string { return &s }
