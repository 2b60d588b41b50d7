package handlers

import (
	"context"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Table names used across the handler tests.
const (
	tblIdempotency = "idempotency"
	tblOrders      = "orders"
	tblProducts    = "products"
	tblWebhooks    = "webhook_events"
)

// dynamoMock emulates the four tables behind one client, dispatching on
// TableName the way the real client does. It understands only the condition
// shapes the stores actually issue.
type dynamoMock struct {
	mu     sync.Mutex
	tables map[string]*mockTable
}

type mockTable struct {
	keyAttr string
	items   map[string]map[string]types.AttributeValue
}

func newDynamoMock() *dynamoMock {
	return &dynamoMock{tables: map[string]*mockTable{
		tblIdempotency: {keyAttr: "pk", items: map[string]map[string]types.AttributeValue{}},
		tblOrders:      {keyAttr: "public_id", items: map[string]map[string]types.AttributeValue{}},
		tblProducts:    {keyAttr: "product_id", items: map[string]map[string]types.AttributeValue{}},
		tblWebhooks:    {keyAttr: "event_id", items: map[string]map[string]types.AttributeValue{}},
	}}
}

func (m *dynamoMock) table(name *string) *mockTable {
	return m.tables[*name]
}

func keyValue(av types.AttributeValue) string {
	return av.(*types.AttributeValueMemberS).Value
}

func (m *dynamoMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(params.TableName)
	k := keyValue(params.Item[t.keyAttr])
	if params.ConditionExpression != nil && strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists(") {
		if _, ok := t.items[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *dynamoMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(params.TableName)
	item, ok := t.items[keyValue(params.Key[t.keyAttr])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *dynamoMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(params.TableName)
	k := keyValue(params.Key[t.keyAttr])
	item, exists := t.items[k]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(") && !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if i := strings.Index(cond, "#s = "); i >= 0 {
			token := strings.TrimSpace(cond[i+len("#s = "):])
			want := params.ExpressionAttributeValues[token].(*types.AttributeValueMemberS)
			cur, _ := item["status"].(*types.AttributeValueMemberS)
			if cur == nil || cur.Value != want.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		// unconditional update on a missing row upserts, like DynamoDB
		item = map[string]types.AttributeValue{t.keyAttr: params.Key[t.keyAttr]}
		t.items[k] = item
	}

	applySetRemoveExpr(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *dynamoMock) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for name, req := range params.RequestItems {
		t := m.tables[name]
		for _, key := range req.Keys {
			if item, ok := t.items[keyValue(key[t.keyAttr])]; ok {
				out.Responses[name] = append(out.Responses[name], item)
			}
		}
	}
	return out, nil
}

func (m *dynamoMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return &dyn.ScanOutput{}, nil
}

// applySetRemoveExpr interprets the narrow "SET a = :v, ... [REMOVE x, y]"
// expressions the stores issue.
func applySetRemoveExpr(item map[string]types.AttributeValue, expr string, names map[string]string, vals map[string]types.AttributeValue) {
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
		if v, ok := vals[strings.TrimSpace(parts[1])]; ok {
			item[name] = v
		}
	}
}

func (m *dynamoMock) attrOf(tableName, key, attr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tables[tableName].items[key]
	if !ok {
		return ""
	}
	s, _ := item[attr].(*types.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}

func (m *dynamoMock) countItems(tableName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[tableName].items)
}

// sqsMock records published audit entries.
type sqsMock struct {
	mu       sync.Mutex
	messages []string
}

func (m *sqsMock) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *params.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

func (m *sqsMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
