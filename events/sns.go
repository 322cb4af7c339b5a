package events

import (
	"context"

	awspkg "organic-hub/pkg/aws"
)

// SNSPublisher fans events out through one SNS topic. The event type is sent
// as the "event_type" message attribute so subscribers can filter on it.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topicArn, data, map[string]string{
		"event_type": eventType,
		"key":        key,
	})
}

func (p *SNSPublisher) Close() error { return nil }
