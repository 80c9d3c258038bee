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

// JobRepo persists deferred delivery jobs. PK: job_id. GSI
// status-fire_at-index feeds the scheduler's restart catch-up in fire
// order.
type JobRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewJobRepo(client *dynamodb.Client, tableName string) *JobRepo {
	return &JobRepo{client: client, tableName: tableName}
}

func (r *JobRepo) Put(ctx context.Context, j *domain.DeliveryJob) error {
	item, err := attributevalue.MarshalMap(j)
	if err != nil {
		return fmt.Errorf("marshal delivery job: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*domain.DeliveryJob, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("job_id", jobID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("delivery job not found: %w", domain.ErrNotFound)
	}
	var j domain.DeliveryJob
	if err := attributevalue.UnmarshalMap(out.Item, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimFired transitions scheduled→fired as a single atomic claim and
// reports whether this caller won it. A job that has fired or been
// cancelled cannot be claimed again.
func (r *JobRepo) ClaimFired(ctx context.Context, jobID string, at time.Time) (bool, error) {
	err := r.transition(ctx, jobID, domain.JobFired, &at)
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cancel transitions scheduled→cancelled; returns whether cancellation
// took effect.
func (r *JobRepo) Cancel(ctx context.Context, jobID string) (bool, error) {
	err := r.transition(ctx, jobID, domain.JobCancelled, nil)
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *JobRepo) transition(ctx context.Context, jobID, status string, firedAt *time.Time) error {
	expr := "SET #s = :s"
	values := map[string]types.AttributeValue{
		":s":         &types.AttributeValueMemberS{Value: status},
		":scheduled": &types.AttributeValueMemberS{Value: domain.JobScheduled},
	}
	if firedAt != nil {
		expr += ", fired_at = :f"
		values[":f"] = &types.AttributeValueMemberS{Value: firedAt.UTC().Format(time.RFC3339)}
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("job_id", jobID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#s = :scheduled"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: values,
	})
	return err
}

// ListScheduled returns all still-scheduled jobs ordered by fire_at.
// Used once at startup to rebuild the dispatch queue.
func (r *JobRepo) ListScheduled(ctx context.Context) ([]domain.DeliveryJob, error) {
	var jobs []domain.DeliveryJob
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("status-fire_at-index"),
			KeyConditionExpression: aws.String("#s = :scheduled"),
			ExpressionAttributeNames: map[string]string{
				"#s": fieldStatus,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":scheduled": &types.AttributeValueMemberS{Value: domain.JobScheduled},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.DeliveryJob
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		jobs = append(jobs, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return jobs, nil
}
