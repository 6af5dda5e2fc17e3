// Package docstore is the document-store adapter: conditional item writes and
// tenant-partition queries against DynamoDB, with item bodies wrapped in the
// value envelope. The tenant partition also carries two reserved item ids,
// one for account metadata and one for the soft-delete marker.
package docstore

import (
	"context"
	"fmt"

	"idvault/internal/envelope"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item attribute names and reserved item ids inside a tenant partition.
const (
	attrAccount = "ivaccount"
	attrID      = "ivid"
	attrPublic  = "ivpublic"
	attrItem    = "ivitem"

	// MetadataID and DeleteMarkerID are reserved ids; they never appear in
	// find results and cannot be used as item ids by callers going through
	// the account operations.
	MetadataID     = "ivmetadata"
	DeleteMarkerID = "ivdelete"

	// Sentinel is the token callers may embed in filter and projection
	// expressions; it is substituted with the stored item attribute path.
	Sentinel = "#iv#"

	itemPath = attrPublic + "." + attrItem
)

// API is the DynamoDB surface the adapter uses. *dynamodb.Client satisfies it;
// tests substitute a mock.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Config holds one document-store endpoint from a connection descriptor.
// Endpoint is optional and points at a local stack when set.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	TableName string
	Endpoint  string
}

// Store executes item operations against one table.
type Store struct {
	client API
	table  string
	codec  envelope.Codec
}

// Open builds a DynamoDB-backed store from a connection descriptor.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("docstore: table name required")
	}
	if cfg.Region == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("docstore: region and credentials required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.TableName), nil
}

// New wraps an existing client. Used by Open and by tests.
func New(client API, table string) *Store {
	return &Store{client: client, table: table, codec: envelope.Default()}
}

func (s *Store) key(account, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrAccount: &types.AttributeValueMemberS{Value: account},
		attrID:      &types.AttributeValueMemberS{Value: id},
	}
}

// PutItem writes an item body under id, failing when the id already exists.
func (s *Store) PutItem(ctx context.Context, account, id, payload string) (Outcome, error) {
	body, err := s.codec.Encode(payload)
	if err != nil {
		return Failed, fmt.Errorf("encode item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrAccount: &types.AttributeValueMemberS{Value: account},
			attrID:      &types.AttributeValueMemberS{Value: id},
			attrPublic: &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				attrItem: &types.AttributeValueMemberS{Value: body},
			}},
		},
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrID},
	})
	if outcome := classify(err); outcome != OK {
		return outcome, err
	}
	return OK, nil
}

// UpdateItem replaces the item body under id, failing when the id is absent.
func (s *Store) UpdateItem(ctx context.Context, account, id, payload string) (Outcome, error) {
	body, err := s.codec.Encode(payload)
	if err != nil {
		return Failed, fmt.Errorf("encode item: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(account, id),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		UpdateExpression:    aws.String("SET #public = :public"),
		ExpressionAttributeNames: map[string]string{
			"#public": attrPublic,
			"#id":     attrID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":public": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				attrItem: &types.AttributeValueMemberS{Value: body},
			}},
		},
	})
	if outcome := classify(err); outcome != OK {
		return outcome, err
	}
	return OK, nil
}

// GetItem reads and unwraps the item body under id. A missing item, or an
// item without a stored body, is NotFound.
func (s *Store) GetItem(ctx context.Context, account, id string) (string, Outcome, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(account, id),
	})
	if err != nil {
		return "", Failed, fmt.Errorf("get item: %w", err)
	}
	body, ok := itemBody(out.Item)
	if !ok {
		return "", NotFound, nil
	}
	payload, err := envelope.Decode(body)
	if err != nil {
		return "", Failed, fmt.Errorf("decode item: %w", err)
	}
	return payload, OK, nil
}

// DeleteItem removes the item under id, failing when the id is absent.
func (s *Store) DeleteItem(ctx context.Context, account, id string) (Outcome, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      s.key(account, id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrID},
	})
	if outcome := classify(err); outcome != OK {
		return outcome, err
	}
	return OK, nil
}

// itemBody digs the stored envelope text out of a raw item.
func itemBody(item map[string]types.AttributeValue) (string, bool) {
	public, ok := item[attrPublic].(*types.AttributeValueMemberM)
	if !ok {
		return "", false
	}
	body, ok := public.Value[attrItem].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return body.Value, true
}

// CreateAccount initializes a tenant partition by writing empty metadata.
// It refuses when the partition already holds metadata or a delete marker
// from an earlier deleteAccount.
func (s *Store) CreateAccount(ctx context.Context, account string) (bool, error) {
	if _, outcome, err := s.GetItem(ctx, account, DeleteMarkerID); err != nil {
		return false, err
	} else if outcome == OK {
		return false, nil
	}
	if _, outcome, err := s.GetItem(ctx, account, MetadataID); err != nil {
		return false, err
	} else if outcome == OK {
		return false, nil
	}
	if outcome, err := s.PutItem(ctx, account, MetadataID, "{}"); outcome != OK {
		return false, err
	}
	_, outcome, err := s.GetItem(ctx, account, MetadataID)
	if err != nil {
		return false, err
	}
	return outcome == OK, nil
}

// DeleteAccount soft-deletes a tenant partition: the metadata record moves
// under the delete-marker id, item records stay in place.
func (s *Store) DeleteAccount(ctx context.Context, account string) (bool, error) {
	metadata, outcome, err := s.GetItem(ctx, account, MetadataID)
	if err != nil {
		return false, err
	}
	if outcome != OK {
		return false, nil
	}
	if outcome, err := s.PutItem(ctx, account, DeleteMarkerID, metadata); outcome != OK && outcome != ConditionalFailed {
		return false, err
	}
	if outcome, err := s.DeleteItem(ctx, account, MetadataID); outcome != OK {
		return false, err
	}
	_, outcome, err = s.GetItem(ctx, account, MetadataID)
	if err != nil {
		return false, err
	}
	return outcome == NotFound, nil
}

// CreateAccountMetadata writes empty metadata, failing when metadata exists.
func (s *Store) CreateAccountMetadata(ctx context.Context, account string) (Outcome, error) {
	return s.PutItem(ctx, account, MetadataID, "{}")
}

// SetAccountMetadata replaces the metadata record, failing when it is absent.
func (s *Store) SetAccountMetadata(ctx context.Context, account, metadata string) (Outcome, error) {
	return s.UpdateItem(ctx, account, MetadataID, metadata)
}

// GetAccountMetadata reads the metadata record.
func (s *Store) GetAccountMetadata(ctx context.Context, account string) (string, Outcome, error) {
	return s.GetItem(ctx, account, MetadataID)
}

// DeleteAccountMetadata removes the metadata record.
func (s *Store) DeleteAccountMetadata(ctx context.Context, account string) (Outcome, error) {
	return s.DeleteItem(ctx, account, MetadataID)
}
