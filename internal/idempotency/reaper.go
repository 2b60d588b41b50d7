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

	"github.com/storelane/checkout/internal/logging"
)

// reapNote marks records failed by the reaper rather than by a handler.
const reapNote = "reaped: processing exceeded lease"

// ReapStuck fails PROCESSING records older than the given lease. A process
// that crashed between TryBegin and Complete leaves such a row behind; once
// failed, a client retry with the same key re-arms it and runs again.
// The lease is policy owned by the caller; the store bakes in no default.
// Returns the number of records reaped.
func (s *Store) ReapStuck(ctx context.Context, lease time.Duration) (int, error) {
	if lease <= 0 {
		return 0, fmt.Errorf("reap lease must be positive, got %s", lease)
	}
	// created_at is stored as RFC3339Nano, so comparing it against this
	// second-precision cutoff lexicographically can misorder rows only inside
	// the cutoff second. Leases are minutes, not milliseconds.
	cutoff := s.nowFunc().UTC().Add(-lease).Format(time.RFC3339)

	reaped := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:        &s.tableName,
			FilterExpression: awsString("#s = :processing AND created_at < :cutoff"),
			ExpressionAttributeNames: map[string]string{
				"#s": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":processing": &types.AttributeValueMemberS{Value: StatusProcessing},
				":cutoff":     &types.AttributeValueMemberS{Value: cutoff},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return reaped, fmt.Errorf("scan stuck records: %w", err)
		}

		for _, item := range out.Items {
			var rec Record
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return reaped, fmt.Errorf("unmarshal stuck record: %w", err)
			}
			ok, err := s.failStuck(ctx, rec.PK)
			if err != nil {
				return reaped, err
			}
			if ok {
				reaped++
				logging.Warn("reaped stuck idempotency record", logging.Fields{
					"scope": rec.Scope, "idempotency_key": rec.IdempotencyKey,
					"created_at": rec.CreatedAt.Format(time.RFC3339),
				})
			}
		}

		if out.LastEvaluatedKey == nil {
			return reaped, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// failStuck conditionally flips one record PROCESSING -> FAILED. The
// condition loses gracefully against a handler that completed in the
// meantime.
func (s *Store) failStuck(ctx context.Context, pk string) (bool, error) {
	now := s.nowFunc().UTC()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		UpdateExpression:    awsString("SET #s = :failed, note = :n, completed_at = :ca"),
		ConditionExpression: awsString("#s = :processing"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":processing": &types.AttributeValueMemberS{Value: StatusProcessing},
			":n":          &types.AttributeValueMemberS{Value: reapNote},
			":ca":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("fail stuck record: %w", err)
	}
	return true, nil
}
