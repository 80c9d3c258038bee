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

// VerificationRepo manages issued challenge records.
// PK: token. GSI user_id-status-index (user_id HASH, status RANGE) backs
// the one-pending-per-user rule and per-user history.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.VerificationRecord) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *VerificationRepo) GetByToken(ctx context.Context, token string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var v domain.VerificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ExpirePending marks every pending record of the user as expired and
// returns how many it touched. Called before issuing a new challenge so
// at most one pending record exists per user.
func (r *VerificationRepo) ExpirePending(ctx context.Context, userID string) (int, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-status-index"),
		KeyConditionExpression: aws.String("user_id = :uid AND #s = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":     &types.AttributeValueMemberS{Value: userID},
			":pending": &types.AttributeValueMemberS{Value: domain.VerificationPending},
		},
	})
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, item := range out.Items {
		tokAttr, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.MarkExpired(ctx, tokAttr.Value); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// MarkExpired transitions a record pending→expired. A record that already
// left pending is untouched; that is not an error.
func (r *VerificationRepo) MarkExpired(ctx context.Context, token string) error {
	err := r.setStatus(ctx, token, domain.VerificationExpired, nil)
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return nil
	}
	return err
}

// Complete transitions a record pending→completed exactly once. Returns
// ErrConflict when the record is no longer pending, so the caller can
// re-read and report AlreadyCompleted vs Expired.
func (r *VerificationRepo) Complete(ctx context.Context, token string, at time.Time) error {
	err := r.setStatus(ctx, token, domain.VerificationCompleted, &at)
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return fmt.Errorf("verification no longer pending: %w", domain.ErrConflict)
	}
	return err
}

func (r *VerificationRepo) setStatus(ctx context.Context, token, status string, completedAt *time.Time) error {
	expr := "SET #s = :s"
	values := map[string]types.AttributeValue{
		":s":       &types.AttributeValueMemberS{Value: status},
		":pending": &types.AttributeValueMemberS{Value: domain.VerificationPending},
	}
	if completedAt != nil {
		expr += ", completed_at = :c"
		values[":c"] = &types.AttributeValueMemberS{Value: completedAt.UTC().Format(time.RFC3339)}
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", token),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#s = :pending"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: values,
	})
	return err
}

// SetShortURL records the shortened link on an issued challenge.
func (r *VerificationRepo) SetShortURL(ctx context.Context, token, shortURL string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldShortURL: shortURL})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", token),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// ListByUser returns the user's most recent challenge records, newest first.
func (r *VerificationRepo) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.VerificationRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-status-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		Limit: aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	var records []domain.VerificationRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CountByStatus tallies all records per status for the stats endpoint.
func (r *VerificationRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.tableName),
			ProjectionExpression:     aws.String("#s"),
			ExpressionAttributeNames: map[string]string{"#s": fieldStatus},
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if s, ok := item[fieldStatus].(*types.AttributeValueMemberS); ok {
				counts[s.Value]++
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return counts, nil
}
