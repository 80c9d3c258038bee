package sns

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-filegate/internal/config"
)

// DeleteNotifier publishes removal notices for delivered artifacts.
// Best-effort: the engine has no authority over the remote display
// surface once an artifact is handed off, so errors are logged by the
// caller and never retried.
type DeleteNotifier interface {
	NotifyDelete(ctx context.Context, userID, deliveryID string) error
}

type notifier struct {
	client   *sns.Client
	topicARN string
}

func NewNotifier(cfg *config.Config) (DeleteNotifier, error) {
	if cfg.SNSTopicARN == "" {
		return nil, errors.New("sns delete topic arn not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &notifier{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSTopicARN}, nil
}

// LogNotifier is the local fallback when no topic is configured: removal
// notices are logged instead of published.
type LogNotifier struct{}

func (LogNotifier) NotifyDelete(_ context.Context, userID, deliveryID string) error {
	slog.Info("delete notice (no sns topic configured)", "user_id", userID, "delivery_id", deliveryID)
	return nil
}

func (n *notifier) NotifyDelete(ctx context.Context, userID, deliveryID string) error {
	payload, err := json.Marshal(map[string]string{
		"action":      "delete",
		"user_id":     userID,
		"delivery_id": deliveryID,
	})
	if err != nil {
		return err
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(payload)),
	})
	return err
}
