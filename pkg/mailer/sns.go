package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client used for staff alerts.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes alerts to a single topic.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

// NewSNSPublisher wraps an SNS client bound to topicARN.
func NewSNSPublisher(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

// NewSNSPublisherFromRegion loads the default AWS credential chain.
func NewSNSPublisherFromRegion(ctx context.Context, region, topicARN string) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSPublisher(sns.NewFromConfig(cfg), topicARN), nil
}

// Publish implements Publisher. SNS caps subjects at 100 characters.
func (p *SNSPublisher) Publish(ctx context.Context, subject, body string) error {
	if p.topicARN == "" {
		return fmt.Errorf("sns topic not configured")
	}
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(sanitizeHeader(subject)),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
