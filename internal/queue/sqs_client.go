package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

const defaultSQSRegion = "us-east-1"

// SendAPI is the slice of *sqs.Client that publishing needs.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes ingestion status changes to an SQS queue. On a FIFO
// queue the ingestion id is the message group, so consumers see one
// ingestion's transitions in order.
type SQSClient struct {
	api      SendAPI
	queueURL string
	fifo     bool
}

// NewSQSClient loads the default AWS credential chain for region and
// targets queueURL.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, errors.New("INGESTION_EVENTS_QUEUE_URL is required")
	}
	if region = strings.TrimSpace(region); region == "" {
		region = defaultSQSRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSClientWithAPI(sqs.NewFromConfig(cfg), queueURL), nil
}

// NewSQSClientWithAPI publishes through api, typically a fake in tests.
func NewSQSClientWithAPI(api SendAPI, queueURL string) *SQSClient {
	return &SQSClient{api: api, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// Send publishes msg with its status and document id as message attributes.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	body, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode ingestion event: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": stringAttr(msg.Status),
		},
	}
	if msg.DocumentID != "" {
		in.MessageAttributes["documentId"] = stringAttr(msg.DocumentID)
	}
	if s.fifo {
		in.MessageGroupId = aws.String(msg.IngestionID)
		in.MessageDeduplicationId = aws.String(msg.IngestionID + ":" + msg.Status)
	}

	if _, err := s.api.SendMessage(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("sqs send %s (%s): %w", msg.Status, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("sqs send %s: %w", msg.Status, err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

var _ Client = (*SQSClient)(nil)
