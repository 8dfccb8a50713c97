package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Pusher sends a mobile push for an event
type Pusher interface {
	Push(ctx context.Context, event Event, title, body string) error
}

// SNSPublisher is the subset of the SNS client used for push delivery
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPusher publishes push payloads to an SNS topic. Mobile endpoints subscribe
// with a filter policy on the user_id attribute.
type SNSPusher struct {
	client   SNSPublisher
	topicARN string
}

// NewSNSPusher creates a pusher for topicARN
func NewSNSPusher(client SNSPublisher, topicARN string) *SNSPusher {
	return &SNSPusher{client: client, topicARN: topicARN}
}

type pushPayload struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Kind   Kind           `json:"kind"`
	TaskID string         `json:"task_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (p *SNSPusher) Push(ctx context.Context, event Event, title, body string) error {
	payload := pushPayload{Title: title, Body: body, Kind: event.Kind, Data: event.Payload}
	if event.TaskID != nil {
		payload.TaskID = event.TaskID.String()
	}
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(message)),
		Subject:  aws.String(title),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.UserID.String()),
			},
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Kind)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish push notification: %w", err)
	}
	return nil
}
