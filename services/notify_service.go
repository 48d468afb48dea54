package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher is the subset of the SNS client used by SNSNotifier.
type SNSPublisher interface {
	Publish(ctx context.Context, in *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// SNSNotifier publishes record events to an SNS topic.
type SNSNotifier struct {
	sns      SNSPublisher
	topicARN string
}

func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return &SNSNotifier{sns: awssns.NewFromConfig(cfg), topicARN: topicARN}
}

func NewSNSNotifierWithClient(client SNSPublisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{sns: client, topicARN: topicARN}
}

func (n *SNSNotifier) Notify(ctx context.Context, ev RecordEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = n.sns.Publish(ctx, &awssns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(ev.Kind),
		Message:  aws.String(string(raw)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind":       {DataType: aws.String("String"), StringValue: aws.String(ev.Kind)},
			"product_id": {DataType: aws.String("String"), StringValue: aws.String(ev.ProductID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
