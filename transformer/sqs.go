package transformer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/baldanca/awsbulk/source"
)

type sqsMessageAttribute struct {
	DataType    string `validate:"required"`
	StringValue *string
	BinaryValue []byte
}

type sqsMessage struct {
	Id                     string                         `validate:"omitempty,max=80"`
	MessageBody            *string                        `validate:"required"`
	DelaySeconds           int32                          `validate:"gte=0,lte=900"`
	MessageGroupId         string                         `validate:"omitempty,max=128"`
	MessageDeduplicationId string                         `validate:"omitempty,max=128"`
	MessageAttributes      map[string]sqsMessageAttribute `validate:"omitempty,max=10,dive"`
}

// SQS turns an envelope into a SendMessageBatch entry. An object with a
// MessageBody field is read as a full entry; any other JSON value becomes the
// body as is, except a JSON string, which is unquoted. Entries without an Id
// get a random one.
type SQS struct{}

func (SQS) Transform(ctx context.Context, in source.Envelope) (sqstypes.SendMessageBatchRequestEntry, error) {
	var probe map[string]json.RawMessage
	if json.Unmarshal(in.Payload, &probe) == nil {
		if _, ok := probe["MessageBody"]; ok {
			return sqsEntry(in.Payload)
		}
	}

	var body string
	if err := json.Unmarshal(in.Payload, &body); err != nil {
		body = string(in.Payload)
	}
	if body == "" {
		return sqstypes.SendMessageBatchRequestEntry{}, errors.New("message body is empty")
	}
	return sqstypes.SendMessageBatchRequestEntry{
		Id:          aws.String(uuid.NewString()),
		MessageBody: aws.String(body),
	}, nil
}

func sqsEntry(raw json.RawMessage) (sqstypes.SendMessageBatchRequestEntry, error) {
	var m sqsMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return sqstypes.SendMessageBatchRequestEntry{}, fmt.Errorf("sqs entry: %w", err)
	}
	if err := validateStruct(m); err != nil {
		return sqstypes.SendMessageBatchRequestEntry{}, fmt.Errorf("sqs entry: %w", err)
	}
	if *m.MessageBody == "" {
		return sqstypes.SendMessageBatchRequestEntry{}, errors.New("message body is empty")
	}

	e := sqstypes.SendMessageBatchRequestEntry{
		Id:           aws.String(m.Id),
		MessageBody:  m.MessageBody,
		DelaySeconds: m.DelaySeconds,
	}
	if m.Id == "" {
		e.Id = aws.String(uuid.NewString())
	}
	if m.MessageGroupId != "" {
		e.MessageGroupId = aws.String(m.MessageGroupId)
	}
	if m.MessageDeduplicationId != "" {
		e.MessageDeduplicationId = aws.String(m.MessageDeduplicationId)
	}
	if len(m.MessageAttributes) > 0 {
		e.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(m.MessageAttributes))
		for name, a := range m.MessageAttributes {
			e.MessageAttributes[name] = sqstypes.MessageAttributeValue{
				DataType:    aws.String(a.DataType),
				StringValue: a.StringValue,
				BinaryValue: a.BinaryValue,
			}
		}
	}
	return e, nil
}
