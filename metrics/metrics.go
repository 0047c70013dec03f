// Package metrics publishes run summaries to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/baldanca/awsbulk/report"
)

// CloudWatchAPI is the subset of the CloudWatch client used by Publisher.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher writes ItemsProcessed, ItemsFailed, Retries and Duration for each
// run, dimensioned by command.
type Publisher struct {
	client    CloudWatchAPI
	namespace string
	logger    *zap.Logger
	now       func() time.Time
}

func NewPublisher(client CloudWatchAPI, namespace string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, namespace: namespace, logger: logger, now: time.Now}
}

// Datums converts a summary into metric data.
func (p *Publisher) Datums(s report.Summary) []types.MetricDatum {
	dims := []types.Dimension{{Name: aws.String("Command"), Value: aws.String(s.Command)}}
	ts := aws.Time(p.now())

	datum := func(name string, v float64, unit types.StandardUnit) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Value:      aws.Float64(v),
			Unit:       unit,
			Timestamp:  ts,
		}
	}

	return []types.MetricDatum{
		datum("ItemsProcessed", float64(s.Processed), types.StandardUnitCount),
		datum("ItemsFailed", float64(s.Failed+s.Invalid), types.StandardUnitCount),
		datum("Retries", float64(s.Retries), types.StandardUnitCount),
		datum("Duration", float64(s.Duration().Milliseconds()), types.StandardUnitMilliseconds),
	}
}

// Publish sends the summary. Failures are logged and returned but should
// never fail the run.
func (p *Publisher) Publish(ctx context.Context, s report.Summary) error {
	if p == nil || p.client == nil || p.namespace == "" {
		return nil
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: p.Datums(s),
	})
	if err != nil {
		p.logger.Warn("failed to publish metrics", zap.String("namespace", p.namespace), zap.Error(err))
		return fmt.Errorf("put metric data namespace=%q: %w", p.namespace, err)
	}
	p.logger.Debug("published metrics", zap.String("namespace", p.namespace), zap.String("command", s.Command))
	return nil
}
