package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/domain"
)

// API is the subset of the SNS client used by Sender.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender publishes notifications as JSON to an SNS topic. A mail-delivery
// subscriber on the topic does the final send.
type Sender struct {
	client   API
	topicARN string
	now      func() time.Time
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return NewSenderWithClient(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN), nil
}

func NewSenderWithClient(client API, topicARN string) *Sender {
	return &Sender{client: client, topicARN: topicARN, now: time.Now}
}

func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(domain.Notification{
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
