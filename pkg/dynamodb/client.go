package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewClient returns a DynamoDB client for cfg.
func NewClient(cfg sdkaws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

// EnsureTable creates a pay-per-request table with a string hash key and
// optional string range key, then waits for it to become active. An
// existing table is left untouched.
func EnsureTable(ctx context.Context, client *dynamodb.Client, table, hashKey, rangeKey string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	attrs := []types.AttributeDefinition{{AttributeName: sdkaws.String(hashKey), AttributeType: types.ScalarAttributeTypeS}}
	schema := []types.KeySchemaElement{{AttributeName: sdkaws.String(hashKey), KeyType: types.KeyTypeHash}}
	if rangeKey != "" {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: sdkaws.String(rangeKey), AttributeType: types.ScalarAttributeTypeS})
		schema = append(schema, types.KeySchemaElement{AttributeName: sdkaws.String(rangeKey), KeyType: types.KeyTypeRange})
	}

	if _, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            sdkaws.String(table),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          types.BillingModePayPerRequest,
	}); err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(table)}, 2*time.Minute)
}
