package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestPublishMessage(t *testing.T) {
	var captured *sns.PublishInput
	client := NewSNSClientWithAPI(&mockSNS{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
		},
	}, "arn:aws:sns:eu-west-1:123:compliance")

	id, err := client.PublishMessage(context.Background(), "compliance report", `{"a":1}`, map[string]string{
		"eventType": "compliance_report.created",
		"severity":  "critical",
		"empty":     "",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:compliance", aws.ToString(captured.TopicArn))
	assert.Equal(t, "compliance report", aws.ToString(captured.Subject))
	assert.Len(t, captured.MessageAttributes, 2)
	assert.Equal(t, "critical", aws.ToString(captured.MessageAttributes["severity"].StringValue))
}

func TestPublishMessage_Error(t *testing.T) {
	client := NewSNSClientWithAPI(&mockSNS{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}, "arn")

	_, err := client.PublishMessage(context.Background(), "", "{}", nil)
	assert.EqualError(t, err, "throttled")
}
