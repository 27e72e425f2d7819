package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	sent       []string
	receiveIn  *sqs.ReceiveMessageInput
	messages   []types.Message
	deleted    []string
	visibility map[string]int32
	urlErr     error
}

func (f *fakeSQS) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	if f.urlErr != nil {
		return nil, f.urlErr
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/" + aws.ToString(params.QueueName))}, nil
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(params.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveIn = params
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	if f.visibility == nil {
		f.visibility = make(map[string]int32)
	}
	f.visibility[aws.ToString(params.ReceiptHandle)] = params.VisibilityTimeout
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func TestSQSQueue_ReceiveClampsToServiceLimits(t *testing.T) {
	fake := &fakeSQS{messages: []types.Message{
		{Body: aws.String("cat1.jpg"), ReceiptHandle: aws.String("rh-1")},
	}}
	q, err := NewSQSQueueProvider(context.Background(), fake, "req", 30*time.Second)
	require.NoError(t, err)

	msgs, err := q.Receive(context.Background(), 50, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "cat1.jpg", msgs[0].Body)
	assert.Equal(t, "rh-1", msgs[0].ReceiptToken)

	assert.Equal(t, "https://sqs.local/req", aws.ToString(fake.receiveIn.QueueUrl))
	assert.Equal(t, int32(10), fake.receiveIn.MaxNumberOfMessages)
	assert.Equal(t, int32(20), fake.receiveIn.WaitTimeSeconds)
	assert.Equal(t, int32(30), fake.receiveIn.VisibilityTimeout)
}

func TestSQSQueue_SendDeleteRelease(t *testing.T) {
	fake := &fakeSQS{}
	q, err := NewSQSQueueProvider(context.Background(), fake, "resp", 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "cat1:cat"))
	require.NoError(t, q.Delete(ctx, "rh-1"))
	require.NoError(t, q.Release(ctx, "rh-2"))

	assert.Equal(t, []string{"cat1:cat"}, fake.sent)
	assert.Equal(t, []string{"rh-1"}, fake.deleted)
	assert.Equal(t, int32(0), fake.visibility["rh-2"])
}

func TestSQSQueue_UnknownQueue(t *testing.T) {
	fake := &fakeSQS{urlErr: errors.New("AWS.SimpleQueueService.NonExistentQueue")}
	_, err := NewSQSQueueProvider(context.Background(), fake, "missing", 0)
	assert.Error(t, err)
}
