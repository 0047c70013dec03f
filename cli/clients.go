package cli

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/baldanca/awsbulk/awsconf"
	"github.com/baldanca/awsbulk/metrics"
	"github.com/baldanca/awsbulk/sink"
	"github.com/baldanca/awsbulk/source"
	"github.com/baldanca/awsbulk/target"
)

// S3API covers reading inputs and writing failure exports.
type S3API interface {
	source.S3API
	sink.S3API
}

// Clients hands out the service clients commands need.
type Clients interface {
	Region() string
	DynamoDB() target.DynamoDBAPI
	SQS() target.SQSAPI
	EventBridge() target.EventBridgeAPI
	S3() S3API
	CloudWatch() metrics.CloudWatchAPI
	CloudWatchLogs() cloudwatchlogs.FilterLogEventsAPIClient
	STS() awsconf.STSAPI
}

// ClientFactory resolves Clients for the given settings. It is called at most
// once per command, and only when the command actually talks to AWS.
type ClientFactory func(ctx context.Context, o awsconf.Options) (Clients, error)

// NewClients is the ClientFactory backed by the AWS SDK.
func NewClients(ctx context.Context, o awsconf.Options) (Clients, error) {
	cfg, err := awsconf.Load(ctx, o)
	if err != nil {
		return nil, err
	}
	// emulators such as LocalStack only route path-style S3 requests
	return &sdkClients{cfg: cfg, pathStyle: o.EndpointURL != ""}, nil
}

type sdkClients struct {
	cfg       aws.Config
	pathStyle bool
}

func (c *sdkClients) Region() string { return c.cfg.Region }

func (c *sdkClients) DynamoDB() target.DynamoDBAPI { return dynamodb.NewFromConfig(c.cfg) }

func (c *sdkClients) SQS() target.SQSAPI { return sqs.NewFromConfig(c.cfg) }

func (c *sdkClients) EventBridge() target.EventBridgeAPI { return eventbridge.NewFromConfig(c.cfg) }

func (c *sdkClients) S3() S3API {
	return s3.NewFromConfig(c.cfg, func(o *s3.Options) {
		o.UsePathStyle = c.pathStyle
	})
}

func (c *sdkClients) CloudWatch() metrics.CloudWatchAPI { return cloudwatch.NewFromConfig(c.cfg) }

func (c *sdkClients) CloudWatchLogs() cloudwatchlogs.FilterLogEventsAPIClient {
	return cloudwatchlogs.NewFromConfig(c.cfg)
}

func (c *sdkClients) STS() awsconf.STSAPI { return sts.NewFromConfig(c.cfg) }
