package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/go-notify-api/internal/config"
	"go.uber.org/zap"
)

// DeliveryJob is the wire shape of one out-of-band channel delivery.
// The queue guarantees at-least-once eventual processing; the producer does
// not wait for, or learn about, the outcome.
type DeliveryJob struct {
	TenantID       string `json:"tenant_id"`
	NotificationID string `json:"notification_id"`
	Channel        string `json:"channel"` // email | slack | sms | push
}

// Enqueuer pushes delivery jobs onto the queue. Fire-and-forget from the
// dispatcher's point of view.
type Enqueuer interface {
	Enqueue(ctx context.Context, job DeliveryJob) error
}

// Client wraps an SQS queue for both producing and consuming delivery jobs.
type Client struct {
	client   *sqs.Client
	queueURL string
	log      *zap.Logger
}

// NewClient creates an SQS client. When cfg.AWSEndpointURL is set the
// endpoint is overridden for local development (LocalStack/ElasticMQ).
func NewClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	var clientOpts []func(*sqs.Options)

	if cfg.AWSEndpointURL != "" {
		log.Info("configuring SQS for local development", zap.String("endpoint", cfg.AWSEndpointURL))
		opts = append(opts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Client{
		client:   sqs.NewFromConfig(awsCfg, clientOpts...),
		queueURL: cfg.DeliveryQueueURL,
		log:      log,
	}, nil
}

// Enqueue publishes one delivery job. The channel name travels as a message
// attribute so consumers can filter without decoding the body.
func (c *Client) Enqueue(ctx context.Context, job DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal delivery job: %w", err)
	}
	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Channel": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.Channel),
			},
		},
	})
	if err != nil {
		c.log.Error("failed to enqueue delivery job",
			zap.String("notification_id", job.NotificationID),
			zap.String("channel", job.Channel),
			zap.Error(err))
		return fmt.Errorf("enqueue delivery job: %w", err)
	}
	c.log.Debug("delivery job enqueued",
		zap.String("notification_id", job.NotificationID),
		zap.String("channel", job.Channel))
	return nil
}

// Receive long-polls for up to max delivery jobs.
func (c *Client) Receive(ctx context.Context, max int32) ([]Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		var job DeliveryJob
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &job); err != nil {
			c.log.Warn("dropping malformed delivery job", zap.Error(err))
			// Delete it: redriving a malformed body can never succeed.
			_ = c.Delete(ctx, aws.ToString(m.ReceiptHandle))
			continue
		}
		msgs = append(msgs, Message{Job: job, ReceiptHandle: aws.ToString(m.ReceiptHandle)})
	}
	return msgs, nil
}

// Delete acknowledges a processed message.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return err
}

// Message is one received delivery job plus its acknowledgement handle.
type Message struct {
	Job           DeliveryJob
	ReceiptHandle string
}
