package services

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type fakeDynamo struct {
	describeErr error
	deleteErr   error
	deleted     bool
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.deleted {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException"}
	}
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamo) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = true
	return &dynamodb.DeleteTableOutput{}, nil
}

func TestTableExists(t *testing.T) {
	ctx := context.Background()

	svc := NewDynamoDBServiceWithClient(&fakeDynamo{})
	exists, err := svc.TableExists(ctx, "tf-lock-widgets-d782c874")
	assert.NoError(t, err)
	assert.True(t, exists)

	svc = NewDynamoDBServiceWithClient(&fakeDynamo{describeErr: &smithy.GenericAPIError{Code: "ResourceNotFoundException"}})
	exists, err = svc.TableExists(ctx, "tf-lock-widgets-d782c874")
	assert.NoError(t, err)
	assert.False(t, exists)

	svc = NewDynamoDBServiceWithClient(&fakeDynamo{describeErr: &smithy.GenericAPIError{Code: "AccessDeniedException"}})
	_, err = svc.TableExists(ctx, "tf-lock-widgets-d782c874")
	assert.Error(t, err)
}

func TestDeleteTable_MissingIsNotAnError(t *testing.T) {
	svc := NewDynamoDBServiceWithClient(&fakeDynamo{
		deleteErr: &smithy.GenericAPIError{Code: "ResourceNotFoundException"},
	})
	assert.NoError(t, svc.DeleteTable(context.Background(), "tf-lock-widgets-d782c874", 0))
}
