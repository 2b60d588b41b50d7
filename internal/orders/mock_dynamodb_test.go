package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ordersMock emulates the orders table: conditional puts on public_id and the
// condition shapes issued by the store. Minimal, test-only.
type ordersMock struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue
}

func newOrdersMock() *ordersMock {
	return &ordersMock{table: map[string]map[string]types.AttributeValue{}}
}

func (m *ordersMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Item["public_id"].(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(public_id)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *ordersMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["public_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *ordersMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["public_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(public_id)") && !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		// status guard: "... #s = :token"
		if i := strings.Index(cond, "#s ="); i >= 0 {
			token := strings.TrimSpace(cond[i+len("#s ="):])
			want := params.ExpressionAttributeValues[token].(*types.AttributeValueMemberS)
			cur, _ := item["status"].(*types.AttributeValueMemberS)
			if cur == nil || cur.Value != want.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !ok {
		return nil, errors.New("mock: unconditional update on missing order")
	}

	// apply "SET a = :v, b = :w"
	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assign := range strings.Split(expr, ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if resolved, ok := params.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		if v, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]; ok {
			item[name] = v
		}
	}
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *ordersMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return &dyn.ScanOutput{}, nil
}

func (m *ordersMock) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return &dyn.BatchGetItemOutput{}, nil
}

func (m *ordersMock) statusOf(publicID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[publicID]
	if !ok {
		return ""
	}
	s, _ := item["status"].(*types.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}
