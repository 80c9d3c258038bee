package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-filegate/internal/domain"
)

// AccessRepo persists per-user verification windows. PK: user_id.
type AccessRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccessRepo(client *dynamodb.Client, tableName string) *AccessRepo {
	return &AccessRepo{client: client, tableName: tableName}
}

func (r *AccessRepo) Get(ctx context.Context, userID string) (*domain.UserAccess, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user access not found: %w", domain.ErrNotFound)
	}
	var a domain.UserAccess
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkVerified stamps the user's window start and bumps the verification
// counter in a single upsert. The condition keeps last_verified_at
// monotonic: a stale writer can never roll the window back.
func (r *AccessRepo) MarkVerified(ctx context.Context, userID string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339)
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
		UpdateExpression: aws.String(
			"SET last_verified_at = :t, updated_at = :t, created_at = if_not_exists(created_at, :t) ADD verification_count :one"),
		ConditionExpression: aws.String(
			"attribute_not_exists(last_verified_at) OR last_verified_at <= :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberS{Value: ts},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		// A newer completion already advanced the window; nothing to do.
		return nil
	}
	return err
}
