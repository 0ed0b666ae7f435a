package eventlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDBStore writes records into a table keyed by thing_name (hash) and timestamp (range).
// Absent optional fields are stored as NULL attributes.
type DynamoDBStore struct {
	// api is the DynamoDB client.
	api DynamoDBAPI
	// table is the table name.
	table string
}

// NewDynamoDBStore wraps a DynamoDB client.
func NewDynamoDBStore(api DynamoDBAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{
		api:   api,
		table: table,
	}
}

// NewDynamoDBClient builds a DynamoDB client, optionally bound to a custom endpoint.
func NewDynamoDBClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// Append puts the record; PutItem replaces any item with the same key.
func (s *DynamoDBStore) Append(ctx context.Context, record *gas.EventRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put event record: %w", err)
	}

	return nil
}

// Get reads the record at (deviceID, timestamp) with a consistent read.
func (s *DynamoDBStore) Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	output, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			gas.DeviceIDAttribute:  &types.AttributeValueMemberS{Value: deviceID},
			gas.TimestampAttribute: &types.AttributeValueMemberN{Value: strconv.FormatInt(timestamp, 10)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get event record: %w", err)
	}

	if len(output.Item) == 0 {
		return nil, notFound(deviceID, timestamp)
	}

	var record gas.EventRecord
	if err = attributevalue.UnmarshalMap(output.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal event record: %w", err)
	}

	return &record, nil
}
