package idempotency

import "time"

// Status values for ledger records. A record moves PROCESSING -> COMPLETED
// or PROCESSING -> FAILED exactly once and never reverts.
const (
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the idempotency DynamoDB table.
// The partition key is scope + "#" + key so one client key can safely be
// reused across unrelated operation types.
type Record struct {
	PK             string     `dynamodbav:"pk"` // scope#key
	IdempotencyKey string     `dynamodbav:"idempotency_key"`
	Scope          string     `dynamodbav:"scope"`
	RequestHash    string     `dynamodbav:"request_hash"`
	Status         string     `dynamodbav:"status"`
	ResponseStatus int        `dynamodbav:"response_status,omitempty"`
	ResponseBody   string     `dynamodbav:"response_body,omitempty"` // small responses only; else use S3 pointer
	CreatedAt      time.Time  `dynamodbav:"created_at"`
	CompletedAt    *time.Time `dynamodbav:"completed_at,omitempty"`
	ExpiresAt      int64      `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string     `dynamodbav:"note,omitempty"`
}

// Terminal reports whether the record reached a final status.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

func recordPK(scope, key string) string {
	return scope + "#" + key
}
