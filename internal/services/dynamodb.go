package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamoAPI is the slice of the DynamoDB client this service uses. It also
// satisfies dynamodb.DescribeTableAPIClient for the deletion waiter.
type dynamoAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// DynamoDBService wraps the direct DynamoDB calls made outside terraform:
// the lock table existence probe and its teardown.
type DynamoDBService struct {
	client dynamoAPI
}

// NewDynamoDBService creates a DynamoDBService from an aws.Config.
func NewDynamoDBService(cfg aws.Config) *DynamoDBService {
	return &DynamoDBService{client: dynamodb.NewFromConfig(cfg)}
}

// NewDynamoDBServiceWithClient creates a DynamoDBService with a custom
// client. This is useful for testing.
func NewDynamoDBServiceWithClient(client dynamoAPI) *DynamoDBService {
	return &DynamoDBService{client: client}
}

// TableExists probes the table with DescribeTable.
func (s *DynamoDBService) TableExists(ctx context.Context, table string) (bool, error) {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return true, nil
	}
	if isErrorCode(err, "ResourceNotFoundException") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check table %s: %w", table, err)
}

// DeleteTable deletes the table and waits for the deletion to complete so
// a subsequent init can recreate it without a name collision. A missing
// table is not an error.
func (s *DynamoDBService) DeleteTable(ctx context.Context, table string, maxWait time.Duration) error {
	_, err := s.client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(table)})
	if err != nil {
		if isErrorCode(err, "ResourceNotFoundException") {
			return nil
		}
		return fmt.Errorf("failed to delete table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, maxWait); err != nil {
		return fmt.Errorf("table %s did not finish deleting within %v: %w", table, maxWait, err)
	}
	return nil
}
