package orders

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

// ErrStatusMismatch indicates a conditional status transition found the order
// in a different state than expected.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders table. Status transitions are
// condition-checked at the storage layer, never read-then-write in the
// application; that is what keeps concurrent webhooks and admin calls safe.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new order aggregate (order plus line items are one item,
// so the conditional put is the whole transaction). The order must start in
// PENDING_PAYMENT with a caller-assigned public id.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(public_id)"),
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return fmt.Errorf("order %s already exists", order.PublicID)
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// Get fetches an order by public id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, publicID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"public_id": &types.AttributeValueMemberS{Value: publicID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus conditionally moves the order from expected -> newStatus.
// Returns ErrStatusMismatch when the order is not currently in expected
// (or does not exist).
func (s *Store) UpdateStatus(ctx context.Context, publicID, expectedStatus, newStatus string) error {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"public_id": &types.AttributeValueMemberS{Value: publicID},
		},
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: newStatus},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":expected": &types.AttributeValueMemberS{Value: expectedStatus},
		},
		ConditionExpression: awsString("attribute_exists(public_id) AND #s = :expected"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// MarkPaid conditionally moves the order PENDING_PAYMENT -> PAID and records
// the provider's payment reference. Returns (true, nil) when the row changed,
// (false, nil) when the order was absent or already past PENDING_PAYMENT —
// the WHERE clause, not application branching, is what keeps a terminal
// CANCELLED order from re-entering PAID.
func (s *Store) MarkPaid(ctx context.Context, publicID, paymentRef string) (bool, error) {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"public_id": &types.AttributeValueMemberS{Value: publicID},
		},
		UpdateExpression:         awsString("SET #s = :paid, payment_ref = :pr, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":paid":    &types.AttributeValueMemberS{Value: StatusPaid},
			":pr":      &types.AttributeValueMemberS{Value: paymentRef},
			":ua":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":pending": &types.AttributeValueMemberS{Value: StatusPendingPayment},
		},
		ConditionExpression: awsString("attribute_exists(public_id) AND #s = :pending"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("mark paid: %w", err)
	}
	return true, nil
}

// SetPaymentIntent records the provider intent id on an existing order.
func (s *Store) SetPaymentIntent(ctx context.Context, publicID, intentID string) error {
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"public_id": &types.AttributeValueMemberS{Value: publicID},
		},
		UpdateExpression: awsString("SET payment_intent_id = :pi, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pi": &types.AttributeValueMemberS{Value: intentID},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: awsString("attribute_exists(public_id)"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return fmt.Errorf("order %s not found", publicID)
		}
		return fmt.Errorf("set payment intent: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
