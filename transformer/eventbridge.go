package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/baldanca/awsbulk/source"
)

type event struct {
	Source       string          `validate:"required"`
	DetailType   string          `validate:"required"`
	Detail       json.RawMessage `validate:"required"`
	EventBusName string
	Resources    []string
	Time         *time.Time
	TraceHeader  string
}

// EventBridge turns an envelope into a PutEvents entry. Detail may be a JSON
// object, which is re-encoded compactly, or a string holding JSON.
type EventBridge struct {
	// EventBus is used for entries that do not name one.
	EventBus string
}

func (t EventBridge) Transform(ctx context.Context, in source.Envelope) (ebtypes.PutEventsRequestEntry, error) {
	var ev event
	if err := json.Unmarshal(in.Payload, &ev); err != nil {
		return ebtypes.PutEventsRequestEntry{}, fmt.Errorf("event must be a JSON object: %w", err)
	}
	if err := validateStruct(ev); err != nil {
		return ebtypes.PutEventsRequestEntry{}, fmt.Errorf("event: %w", err)
	}

	detail, err := eventDetail(ev.Detail)
	if err != nil {
		return ebtypes.PutEventsRequestEntry{}, err
	}

	e := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(ev.Source),
		DetailType: aws.String(ev.DetailType),
		Detail:     aws.String(detail),
		Resources:  ev.Resources,
		Time:       ev.Time,
	}
	bus := ev.EventBusName
	if bus == "" {
		bus = t.EventBus
	}
	if bus != "" {
		e.EventBusName = aws.String(bus)
	}
	if ev.TraceHeader != "" {
		e.TraceHeader = aws.String(ev.TraceHeader)
	}
	return e, nil
}

func eventDetail(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)

	var s string
	if json.Unmarshal(raw, &s) == nil {
		raw = []byte(s)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("event Detail must be a JSON object: %w", err)
	}
	if obj == nil {
		return "", fmt.Errorf("event Detail must be a JSON object, got %s", truncate(raw))
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
