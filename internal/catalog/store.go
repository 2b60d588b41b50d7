// Package catalog resolves products for checkout. Deactivated products are
// filtered by an explicit predicate here at the store boundary, so no caller
// can forget the "active only" rule.
package catalog

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storelane/checkout/internal/aws"
	"github.com/storelane/checkout/internal/money"
)

// Product is the slice of the catalog item checkout needs: a price snapshot
// source, not a navigable entity graph. Prices come out as integer minor
// units regardless of how merchandising entered them.
type Product struct {
	ProductID  string
	Name       string
	PriceMinor int64
	Currency   string
	Active     bool
}

// storedProduct is the persisted shape. Merchandising writes prices as
// decimal amounts; the conversion to minor units happens here at the read
// boundary so nothing downstream ever touches a float.
type storedProduct struct {
	ProductID string  `dynamodbav:"product_id"`
	Name      string  `dynamodbav:"name"`
	Price     float64 `dynamodbav:"price"`
	Currency  string  `dynamodbav:"currency"`
	Active    bool    `dynamodbav:"active"`
}

// Store reads the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// GetActive fetches the active products among ids, keyed by product id.
// Missing and deactivated ids are simply absent from the result; the caller
// decides whether that is a 404.
func (s *Store) GetActive(ctx context.Context, ids []string) (map[string]Product, error) {
	result := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		})
	}

	input := &dyn.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			s.tableName: {Keys: keys},
		},
	}

	for {
		out, err := s.client.BatchGetItem(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("batch get products: %w", err)
		}
		for _, item := range out.Responses[s.tableName] {
			var sp storedProduct
			if err := attributevalue.UnmarshalMap(item, &sp); err != nil {
				return nil, fmt.Errorf("unmarshal product: %w", err)
			}
			if !sp.Active {
				continue
			}
			result[sp.ProductID] = Product{
				ProductID:  sp.ProductID,
				Name:       sp.Name,
				PriceMinor: money.ToMinorUnits(sp.Price),
				Currency:   sp.Currency,
				Active:     sp.Active,
			}
		}
		unprocessed, ok := out.UnprocessedKeys[s.tableName]
		if !ok || len(unprocessed.Keys) == 0 {
			return result, nil
		}
		input.RequestItems = map[string]types.KeysAndAttributes{s.tableName: unprocessed}
	}
}
