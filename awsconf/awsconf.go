// Package awsconf resolves the aws.Config shared by every service client.
package awsconf

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ErrNoRegion is returned when no region is configured anywhere.
var ErrNoRegion = errors.New("no AWS region configured; use --region, AWSBULK_REGION or AWS_REGION")

type Options struct {
	Region      string
	Profile     string
	EndpointURL string

	// Static credentials, mostly for local emulators.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// RetryMaxAttempts bounds the SDK's own retries; 0 keeps the SDK default.
	RetryMaxAttempts int
}

func (o Options) loadOptions() []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	if o.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(o.Profile))
	}
	if o.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, o.SessionToken),
		))
	}
	if o.RetryMaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(o.RetryMaxAttempts))
	}
	return opts
}

// Load resolves the AWS config from the default chain with o applied on top.
func Load(ctx context.Context, o Options) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, o.loadOptions()...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return aws.Config{}, ErrNoRegion
	}
	if o.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(o.EndpointURL)
	}
	return cfg, nil
}

// STSAPI is the subset of the STS client used by WhoAmI.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the principal the resolved credentials belong to.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
	Region  string `json:"region"`
}

func (i Identity) Columns() []string { return []string{"account", "arn", "user_id", "region"} }
func (i Identity) Values() []string  { return []string{i.Account, i.ARN, i.UserID, i.Region} }

// WhoAmI calls sts:GetCallerIdentity.
func WhoAmI(ctx context.Context, client STSAPI, region string) (Identity, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("get caller identity: %w", err)
	}
	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
		Region:  region,
	}, nil
}
