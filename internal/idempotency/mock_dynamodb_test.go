package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ledgerMock is a small in-memory stand-in for the DynamoDB client, enough to
// exercise the store's conditional writes. Not production-grade.
type ledgerMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	updateCalls int

	failPuts    bool // simulate transient storage failure
	failUpdates bool
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{table: map[string]map[string]types.AttributeValue{}}
}

func (m *ledgerMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failPuts {
		return nil, errors.New("simulated dynamo outage")
	}
	k := params.Item["pk"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(pk)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *ledgerMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["pk"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *ledgerMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdates {
		return nil, errors.New("simulated dynamo outage")
	}
	k := params.Key["pk"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		// Complete is best-effort on a missing row; DynamoDB would upsert,
		// our tests never rely on that, so just create the row.
		item = map[string]types.AttributeValue{"pk": params.Key["pk"]}
		m.table[k] = item
	}

	if params.ConditionExpression != nil {
		// only "#s = :token" conditions are issued by the store
		token := strings.TrimSpace(strings.TrimPrefix(*params.ConditionExpression, "#s ="))
		want, ok := params.ExpressionAttributeValues[token].(*types.AttributeValueMemberS)
		if !ok {
			return nil, errors.New("mock: unsupported condition " + *params.ConditionExpression)
		}
		cur, ok := item["status"].(*types.AttributeValueMemberS)
		if !ok || cur.Value != want.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	applyUpdateExpr(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *ledgerMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []map[string]types.AttributeValue
	for _, item := range m.table {
		if params.FilterExpression != nil {
			// only "#s = :processing AND created_at < :cutoff" is issued
			status, _ := item["status"].(*types.AttributeValueMemberS)
			want := params.ExpressionAttributeValues[":processing"].(*types.AttributeValueMemberS)
			if status == nil || status.Value != want.Value {
				continue
			}
			created, _ := item["created_at"].(*types.AttributeValueMemberS)
			cutoff := params.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberS)
			if created == nil || created.Value >= cutoff.Value {
				continue
			}
		}
		items = append(items, item)
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func (m *ledgerMock) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return &dyn.BatchGetItemOutput{}, nil
}

// applyUpdateExpr interprets the narrow "SET a = :v, ... [REMOVE x, y]"
// expressions the store issues.
func applyUpdateExpr(item map[string]types.AttributeValue, expr string, names map[string]string, vals map[string]types.AttributeValue) {
	setPart := expr
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		setPart = expr[:i]
		for _, attr := range strings.Split(expr[i+len(" REMOVE "):], ",") {
			delete(item, strings.TrimSpace(attr))
		}
	}
	setPart = strings.TrimPrefix(setPart, "SET ")
	for _, assign := range strings.Split(setPart, ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if resolved, ok := names[name]; ok {
			name = resolved
		}
		token := strings.TrimSpace(parts[1])
		if v, ok := vals[token]; ok {
			item[name] = v
		}
	}
}

func (m *ledgerMock) statusOf(pk string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[pk]
	if !ok {
		return ""
	}
	s, _ := item["status"].(*types.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}
