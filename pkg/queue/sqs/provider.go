package sqs

import (
	"context"
	"fmt"
	"time"

	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS caps a single ReceiveMessage at 10 messages and 20s of long polling
const (
	maxBatch = 10
	maxWait  = 20 * time.Second
)

// API is the subset of the SQS client used by the provider
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSQueueProvider queue provider backed by an SQS queue
type SQSQueueProvider struct {
	client     API
	name       string
	url        string
	visibility time.Duration
}

// NewSQSQueueProvider resolves the queue URL for name
func NewSQSQueueProvider(ctx context.Context, client API, name string, visibility time.Duration) (*SQSQueueProvider, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve queue %s: %w", name, err)
	}
	return &SQSQueueProvider{
		client:     client,
		name:       name,
		url:        aws.ToString(out.QueueUrl),
		visibility: visibility,
	}, nil
}

// Send enqueues one message
func (p *SQSQueueProvider) Send(ctx context.Context, body string) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", p.name, err)
	}
	return nil
}

// Receive leases up to maxMessages using SQS long polling
func (p *SQSQueueProvider) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]*interfaces.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	if maxMessages > maxBatch {
		maxMessages = maxBatch
	}
	if wait > maxWait {
		wait = maxWait
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.url),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(wait / time.Second),
	}
	if p.visibility > 0 {
		input.VisibilityTimeout = int32(p.visibility / time.Second)
	}

	start := time.Now()
	out, err := p.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", p.name, err)
	}

	deadline := start.Add(p.visibility)
	msgs := make([]*interfaces.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, &interfaces.Message{
			Body:               aws.ToString(m.Body),
			ReceiptToken:       aws.ToString(m.ReceiptHandle),
			VisibilityDeadline: deadline,
		})
	}
	if len(msgs) > 0 {
		logger.DebugCtx(ctx, "received %d messages from %s", len(msgs), p.name)
	}
	return msgs, nil
}

// Delete acknowledges a leased message
func (p *SQSQueueProvider) Delete(ctx context.Context, receiptToken string) error {
	_, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.url),
		ReceiptHandle: aws.String(receiptToken),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", p.name, err)
	}
	return nil
}

// Release makes a leased message visible again by zeroing its visibility timeout
func (p *SQSQueueProvider) Release(ctx context.Context, receiptToken string) error {
	_, err := p.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.url),
		ReceiptHandle:     aws.String(receiptToken),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to release lease on %s: %w", p.name, err)
	}
	return nil
}

// Close is a no-op, the SQS client holds no connection state
func (p *SQSQueueProvider) Close() error {
	return nil
}
