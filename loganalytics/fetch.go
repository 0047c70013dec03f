// Package loganalytics pulls CloudWatch Logs events and summarises them into
// message patterns and anomalies.
package loganalytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// Event is one log line.
type Event struct {
	Time    time.Time
	Stream  string
	Message string
}

// Query selects the events to fetch. Zero Start/End leave the range open;
// Limit 0 means no limit.
type Query struct {
	LogGroup string
	Streams  []string
	Filter   string
	Start    time.Time
	End      time.Time
	Limit    int
}

type Fetcher struct {
	client cloudwatchlogs.FilterLogEventsAPIClient
}

func NewFetcher(client cloudwatchlogs.FilterLogEventsAPIClient) *Fetcher {
	if client == nil {
		panic("cloudwatch logs client is required")
	}
	return &Fetcher{client: client}
}

// Fetch pages through FilterLogEvents until the range is exhausted or Limit
// events were read.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]Event, error) {
	if q.LogGroup == "" {
		return nil, errors.New("log group is required")
	}

	in := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(q.LogGroup),
	}
	if len(q.Streams) > 0 {
		in.LogStreamNames = q.Streams
	}
	if q.Filter != "" {
		in.FilterPattern = aws.String(q.Filter)
	}
	if !q.Start.IsZero() {
		in.StartTime = aws.Int64(q.Start.UnixMilli())
	}
	if !q.End.IsZero() {
		in.EndTime = aws.Int64(q.End.UnixMilli())
	}

	var events []Event
	p := cloudwatchlogs.NewFilterLogEventsPaginator(f.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return events, fmt.Errorf("filter log events group=%q: %w", q.LogGroup, err)
		}
		for _, e := range page.Events {
			events = append(events, Event{
				Time:    time.UnixMilli(aws.ToInt64(e.Timestamp)).UTC(),
				Stream:  aws.ToString(e.LogStreamName),
				Message: aws.ToString(e.Message),
			})
			if q.Limit > 0 && len(events) >= q.Limit {
				return events, nil
			}
		}
	}
	return events, nil
}
