package idempotency

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

// Store encapsulates ledger operations against DynamoDB. The conditional
// writes here are the only mechanism preventing double execution; callers
// must not layer in-process locks on top (they don't hold across instances).
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for ledger records.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// TryBegin atomically inserts a PROCESSING record for (key, scope) if none
// exists. Returns (true, nil, nil) when this caller won the insert.
// When a record already exists the loser reads it back and must treat it as
// authoritative: (false, existing, nil).
func (s *Store) TryBegin(ctx context.Context, key, scope, requestHash string) (bool, *Record, error) {
	now := s.nowFunc().UTC()
	rec := Record{
		PK:             recordPK(scope, key),
		IdempotencyKey: key,
		Scope:          scope,
		RequestHash:    requestHash,
		Status:         StatusProcessing,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, nil, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(pk)"),
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			existing, getErr := s.Get(ctx, key, scope)
			if getErr != nil {
				return false, nil, fmt.Errorf("read back winner: %w", getErr)
			}
			if existing == nil {
				// Lost the race and the winner's row vanished between calls;
				// surface as transient so the client retries.
				return false, nil, fmt.Errorf("conditional insert failed but record missing for %s", recordPK(scope, key))
			}
			return false, existing, nil
		}
		return false, nil, fmt.Errorf("put item: %w", err)
	}

	return true, nil, nil
}

// Get retrieves a ledger record. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key, scope string) (*Record, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: recordPK(scope, key)},
		},
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// Complete moves the record to a terminal status and stores the response to
// replay. Best-effort: a missing record is not an error, and the ledger row
// is never rolled back on caller cancellation.
func (s *Store) Complete(ctx context.Context, key, scope, status, responseBody string, responseStatus int) error {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: recordPK(scope, key)},
		},
		UpdateExpression: awsString("SET #s = :status, response_body = :rb, response_status = :rs, completed_at = :ca"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
			":rb":     &types.AttributeValueMemberS{Value: responseBody},
			":rs":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", responseStatus)},
			":ca":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item (complete): %w", err)
	}
	return nil
}

// Rearm flips a FAILED record back to PROCESSING so the same key can retry.
// The condition guards against racing retries: only one caller re-arms.
// Returns (false, nil) when the record is no longer FAILED.
func (s *Store) Rearm(ctx context.Context, key, scope string) (bool, error) {
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: recordPK(scope, key)},
		},
		UpdateExpression:    awsString("SET #s = :processing REMOVE response_body, response_status, completed_at, note"),
		ConditionExpression: awsString("#s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: StatusProcessing},
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
		},
	}
	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("update item (rearm): %w", err)
	}
	return true, nil
}

// Helper
func awsString(s string) *string { return &s }
