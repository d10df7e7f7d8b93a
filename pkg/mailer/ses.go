package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used for delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport delivers messages with Amazon SES.
type SESTransport struct {
	client SESAPI
}

// NewSESTransport wraps an SES client.
func NewSESTransport(client SESAPI) *SESTransport {
	return &SESTransport{client: client}
}

// NewSESTransportFromRegion loads the default AWS credential chain.
func NewSESTransportFromRegion(ctx context.Context, region string) (*SESTransport, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESTransport(ses.NewFromConfig(cfg)), nil
}

// Name implements Transport.
func (t *SESTransport) Name() string { return "ses" }

// Send implements Transport.
func (t *SESTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(msg.From),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
	}
	for name, value := range msg.Tags {
		input.Tags = append(input.Tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}
	if _, err := t.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
