package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FindQuery carries the optional query parts of a find or count command.
// Filter and Projection may embed the Sentinel token, which is substituted
// with the stored item attribute path before the query is issued.
type FindQuery struct {
	Filter     string
	Projection string
	Names      map[string]string
	Values     map[string]string
	Limit      int32
	StartKey   string
}

// FindResult is the wire shape of a find response. Items holds either
// id-to-body maps, bare ids (id projection), or raw items (custom
// projection). LastEvaluatedKey passes through for cursor paging.
type FindResult struct {
	Items            []any          `json:"Items"`
	Count            int            `json:"Count"`
	LastEvaluatedKey map[string]any `json:"LastEvaluatedKey,omitempty"`
}

func substituteSentinel(expr string) string {
	return strings.ReplaceAll(expr, Sentinel, itemPath)
}

func (s *Store) queryInput(account string, q *FindQuery, count bool) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.table),
		KeyConditionExpression:   aws.String("(#account = :account)"),
		ExpressionAttributeNames: map[string]string{"#account": attrAccount},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":account": &types.AttributeValueMemberS{Value: account},
		},
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	}
	if q == nil {
		q = &FindQuery{}
	}
	if count {
		input.Select = types.SelectCount
	}
	if q.Filter != "" {
		input.FilterExpression = aws.String(substituteSentinel(q.Filter))
	}
	if !count && q.Projection != "" {
		input.ProjectionExpression = aws.String(substituteSentinel(q.Projection))
	}
	for name, column := range q.Names {
		input.ExpressionAttributeNames[name] = column
	}
	for name, value := range q.Values {
		input.ExpressionAttributeValues[name] = &types.AttributeValueMemberS{Value: value}
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(q.Limit)
	}
	if q.StartKey != "" {
		input.ExclusiveStartKey = s.key(account, q.StartKey)
	}
	return input
}

// CountItems counts the items matching the query inside the tenant
// partition. Reserved ids are included, matching the stored partition size.
func (s *Store) CountItems(ctx context.Context, account string, q *FindQuery) (int, error) {
	out, err := s.client.Query(ctx, s.queryInput(account, q, true))
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return int(out.Count), nil
}

// CountAllItems counts the whole tenant partition.
func (s *Store) CountAllItems(ctx context.Context, account string) (int, error) {
	return s.CountItems(ctx, account, nil)
}

// FindItems queries the tenant partition and renders the result as JSON
// text. Without a projection, items render as one-key id-to-body maps with
// the reserved ids filtered out; a bare id projection renders the id list;
// any other projection passes the raw items through.
func (s *Store) FindItems(ctx context.Context, account string, q *FindQuery) (string, error) {
	out, err := s.client.Query(ctx, s.queryInput(account, q, false))
	if err != nil {
		return "", fmt.Errorf("find items: %w", err)
	}
	result := FindResult{Items: []any{}}
	projection := ""
	if q != nil {
		projection = q.Projection
	}
	switch {
	case projection == attrID:
		for _, item := range out.Items {
			if reservedItem(item) {
				continue
			}
			if id, ok := item[attrID].(*types.AttributeValueMemberS); ok {
				result.Items = append(result.Items, id.Value)
			}
		}
		result.Count = len(result.Items)
	case projection != "":
		for _, item := range out.Items {
			raw := map[string]any{}
			if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
				return "", fmt.Errorf("unmarshal item: %w", err)
			}
			result.Items = append(result.Items, raw)
		}
		result.Count = int(out.Count)
	default:
		for _, item := range out.Items {
			if reservedItem(item) {
				continue
			}
			id, ok := item[attrID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if body, ok := itemBody(item); ok {
				result.Items = append(result.Items, map[string]any{id.Value: body})
			}
		}
		result.Count = len(result.Items)
	}
	if len(out.LastEvaluatedKey) > 0 {
		cursor := map[string]any{}
		if err := attributevalue.UnmarshalMap(out.LastEvaluatedKey, &cursor); err != nil {
			return "", fmt.Errorf("unmarshal cursor: %w", err)
		}
		result.LastEvaluatedKey = cursor
	}
	text, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal find result: %w", err)
	}
	return string(text), nil
}

func reservedItem(item map[string]types.AttributeValue) bool {
	id, ok := item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return false
	}
	return id.Value == MetadataID || id.Value == DeleteMarkerID
}
