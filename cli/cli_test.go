package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldanca/awsbulk/awsconf"
	"github.com/baldanca/awsbulk/config"
	"github.com/baldanca/awsbulk/loganalytics"
	"github.com/baldanca/awsbulk/metrics"
	"github.com/baldanca/awsbulk/processor"
	"github.com/baldanca/awsbulk/report"
	"github.com/baldanca/awsbulk/source"
	"github.com/baldanca/awsbulk/target"
)

type fakeSQS struct {
	mu    sync.Mutex
	calls int
	// failBody marks messages reported in Failed on every call.
	failBody string
	err      error
}

func (f *fakeSQS) SendMessageBatch(ctx context.Context, in *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := &sqs.SendMessageBatchOutput{}
	for _, e := range in.Entries {
		if f.failBody != "" && aws.ToString(e.MessageBody) == f.failBody {
			out.Failed = append(out.Failed, sqstypes.BatchResultErrorEntry{
				Id:   e.Id,
				Code: aws.String("InternalError"),
			})
			continue
		}
		out.Successful = append(out.Successful, sqstypes.SendMessageBatchResultEntry{Id: e.Id})
	}
	return out, nil
}

type fakeDynamoDB struct {
	mu     sync.Mutex
	tables []string
	writes int
}

func (f *fakeDynamoDB) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for table, reqs := range in.RequestItems {
		f.tables = append(f.tables, table)
		f.writes += len(reqs)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

type fakeSTS struct{}

func (fakeSTS) GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/ci"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil
}

type fakeLogs struct {
	events []logtypes.FilteredLogEvent
	in     *cloudwatchlogs.FilterLogEventsInput
}

func (f *fakeLogs) FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.in = in
	return &cloudwatchlogs.FilterLogEventsOutput{Events: f.events}, nil
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type fakeClients struct {
	sqs  *fakeSQS
	ddb  *fakeDynamoDB
	logs *fakeLogs
	cw   *fakeCloudWatch
}

func (c *fakeClients) Region() string                    { return "eu-west-1" }
func (c *fakeClients) DynamoDB() target.DynamoDBAPI       { return c.ddb }
func (c *fakeClients) SQS() target.SQSAPI                 { return c.sqs }
func (c *fakeClients) EventBridge() target.EventBridgeAPI { return nil }
func (c *fakeClients) S3() S3API                          { return nil }
func (c *fakeClients) CloudWatch() metrics.CloudWatchAPI  { return c.cw }
func (c *fakeClients) STS() awsconf.STSAPI                { return fakeSTS{} }

func (c *fakeClients) CloudWatchLogs() cloudwatchlogs.FilterLogEventsAPIClient { return c.logs }

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer

	clients  *fakeClients
	resolved *awsconf.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &harness{clients: &fakeClients{
		sqs:  &fakeSQS{},
		ddb:  &fakeDynamoDB{},
		logs: &fakeLogs{},
		cw:   &fakeCloudWatch{},
	}}
}

func (h *harness) run(args ...string) int {
	return Execute(context.Background(), args, Options{
		Stdin:  strings.NewReader(""),
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		NewClients: func(ctx context.Context, o awsconf.Options) (Clients, error) {
			h.resolved = &o
			return h.clients, nil
		},
	})
}

func writeInput(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func decodeSummary(t *testing.T, out []byte) report.Summary {
	t.Helper()
	var sums []report.Summary
	dec := json.NewDecoder(bytes.NewReader(out))
	require.NoError(t, dec.Decode(&sums))
	require.Len(t, sums, 1)
	return sums[0]
}

func messages(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"MessageBody":"m-%d"}`, i)
	}
	return lines
}

func TestExecute_DryRunNeverCallsAWS(t *testing.T) {
	h := newHarness(t)
	in := writeInput(t, messages(23)...)

	code := Execute(context.Background(),
		[]string{"sqs", "send-message-batch", "--queue-url", "q", "--input", in, "--dry-run", "--output", "json"},
		Options{
			Stdout: &h.stdout,
			Stderr: &h.stderr,
			NewClients: func(ctx context.Context, o awsconf.Options) (Clients, error) {
				assert.Fail(t, "dry run must not resolve AWS clients")
				return nil, nil
			},
		})
	require.Equal(t, ExitOK, code, h.stderr.String())

	sum := decodeSummary(t, h.stdout.Bytes())
	assert.Equal(t, "sqs send-message-batch", sum.Command)
	assert.Equal(t, 23, sum.Total)
	assert.Equal(t, 23, sum.Processed)
	assert.Equal(t, 3, sum.Batches, "default batch size is capped at the SQS limit")
	assert.True(t, sum.DryRun)
	assert.NotEmpty(t, sum.RunID)
}

func TestExecute_SQSSendsEverything(t *testing.T) {
	h := newHarness(t)
	in := writeInput(t, messages(15)...)

	code := h.run("sqs", "send-message-batch", "-q", "https://sqs/q", "-i", in, "--region", "eu-central-1", "-o", "json")
	require.Equal(t, ExitOK, code, h.stderr.String())

	sum := decodeSummary(t, h.stdout.Bytes())
	assert.Equal(t, 15, sum.Processed)
	assert.Equal(t, 2, h.clients.sqs.calls)
	require.NotNil(t, h.resolved)
	assert.Equal(t, "eu-central-1", h.resolved.Region)
}

func TestExecute_PartialFailureExportsFailedItems(t *testing.T) {
	h := newHarness(t)
	h.clients.sqs.failBody = "m-3"
	in := writeInput(t, messages(5)...)
	failed := filepath.Join(t.TempDir(), "out", "failed.jsonl")

	code := h.run("sqs", "send-message-batch", "--queue-url", "q", "--input", in,
		"--max-retries", "2", "--base-delay", "1ms", "--max-delay", "2ms",
		"--failed-output", failed, "--failed-sample", "5", "--output", "jsonl")
	require.Equal(t, ExitPartial, code, h.stderr.String())
	assert.Equal(t, 3, h.clients.sqs.calls, "one submission and two retries")

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 2, "summary then the failed sample")
	var sum report.Summary
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &sum))
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Retries)

	data, err := os.ReadFile(failed)
	require.NoError(t, err)
	var rec report.FailureRecord
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, 3, rec.Index)
	assert.Equal(t, "unprocessed after retries", rec.Reason)
	assert.JSONEq(t, `{"MessageBody":"m-3"}`, rec.Payload)
	assert.Contains(t, h.stderr.String(), "some items were not processed")
}

func TestExecute_NoRetry(t *testing.T) {
	h := newHarness(t)
	h.clients.sqs.failBody = "m-0"
	in := writeInput(t, messages(2)...)

	code := h.run("sqs", "send-message-batch", "--queue-url", "q", "--input", in, "--no-retry", "-o", "json")
	require.Equal(t, ExitPartial, code)
	assert.Equal(t, 1, h.clients.sqs.calls)
	assert.Zero(t, decodeSummary(t, h.stdout.Bytes()).Retries)
}

func TestExecute_FatalErrorAborts(t *testing.T) {
	h := newHarness(t)
	h.clients.sqs.err = &smithy.GenericAPIError{Code: "QueueDoesNotExist", Message: "no such queue"}
	in := writeInput(t, messages(3)...)
	failed := filepath.Join(t.TempDir(), "failed.json")

	code := h.run("sqs", "send-message-batch", "--queue-url", "q", "--input", in,
		"--failed-output", failed, "--failed-format", "json", "-o", "json")
	require.Equal(t, ExitError, code)
	assert.Equal(t, 1, h.clients.sqs.calls)
	assert.Contains(t, h.stderr.String(), "QueueDoesNotExist")

	sum := decodeSummary(t, h.stdout.Bytes())
	assert.Equal(t, 3, sum.Failed)

	var recs []report.FailureRecord
	data, err := os.ReadFile(failed)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &recs))
	require.Len(t, recs, 3)
	assert.True(t, strings.HasPrefix(recs[0].Reason, "aborted: "))
}

func TestExecute_StdinInput(t *testing.T) {
	h := newHarness(t)

	code := Execute(context.Background(),
		[]string{"events", "put-events", "--input", "-", "--dry-run", "-o", "json"},
		Options{
			Stdin:  strings.NewReader(`[{"Source":"app","DetailType":"t","Detail":{"a":1}},{"Source":"app"}]`),
			Stdout: &h.stdout,
			Stderr: &h.stderr,
		})
	require.Equal(t, ExitPartial, code, h.stderr.String())

	sum := decodeSummary(t, h.stdout.Bytes())
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Invalid)
}

func TestExecute_DynamoDBRequestFile(t *testing.T) {
	h := newHarness(t)
	in := writeInput(t, `{"users": [
		{"PutRequest": {"Item": {"id": {"S": "1"}}}},
		{"PutRequest": {"Item": {"id": {"S": "2"}}}},
		{"DeleteRequest": {"Key": {"id": {"S": "3"}}}}
	]}`)

	code := h.run("dynamodb", "batch-write-item", "--input", in, "-o", "json")
	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Equal(t, []string{"users"}, h.clients.ddb.tables)
	assert.Equal(t, 3, h.clients.ddb.writes)
	assert.Equal(t, 3, decodeSummary(t, h.stdout.Bytes()).Processed)
}

func TestExecute_DynamoDBPlainJSON(t *testing.T) {
	h := newHarness(t)
	in := writeInput(t, `{"id":"a","n":1}`, `{"id":"b","n":2}`)

	code := h.run("dynamodb", "batch-write-item", "-t", "items", "--plain-json", "-i", in, "-o", "json")
	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Equal(t, []string{"items"}, h.clients.ddb.tables)
	assert.Equal(t, 2, h.clients.ddb.writes)
}

func TestExecute_MetricsPublished(t *testing.T) {
	h := newHarness(t)
	in := writeInput(t, messages(2)...)

	code := h.run("sqs", "send-message-batch", "--queue-url", "q", "--input", in, "--metrics-namespace", "Bulk", "-o", "json")
	require.Equal(t, ExitOK, code, h.stderr.String())
	require.Len(t, h.clients.cw.inputs, 1)
	assert.Equal(t, "Bulk", aws.ToString(h.clients.cw.inputs[0].Namespace))
}

func TestExecute_ConfigFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "awsbulk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aws:
  region: ap-south-1
output: json
processor:
  batch_size: 2
`), 0o644))
	in := writeInput(t, messages(5)...)

	code := h.run("--config", path, "sqs", "send-message-batch", "--queue-url", "q", "--input", in)
	require.Equal(t, ExitOK, code, h.stderr.String())

	sum := decodeSummary(t, h.stdout.Bytes())
	assert.Equal(t, 3, sum.Batches)
	assert.Equal(t, "ap-south-1", h.resolved.Region)
}

func TestExecute_UsageErrors(t *testing.T) {
	in := writeInput(t, `{"MessageBody":"x"}`)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"s3", "sync"}},
		{"unknown flag", []string{"sqs", "send-message-batch", "--nope"}},
		{"positional args", []string{"whoami", "extra"}},
		{"missing input", []string{"sqs", "send-message-batch", "--queue-url", "q"}},
		{"missing queue", []string{"sqs", "send-message-batch", "--input", in}},
		{"missing table", []string{"dynamodb", "batch-write-item", "--input", in}},
		{"bad output", []string{"--output", "xml", "whoami"}},
		{"bad log format", []string{"--log-format", "xml", "whoami"}},
		{"bad failed format", []string{"sqs", "send-message-batch", "--queue-url", "q", "--input", in, "--failed-output", "f", "--failed-format", "xml"}},
		{"zero batch size", []string{"sqs", "send-message-batch", "--queue-url", "q", "--input", in, "--batch-size", "0"}},
		{"missing config", []string{"--config", "/does/not/exist.yaml", "whoami"}},
		{"missing log group", []string{"logs", "analyze"}},
		{"bad input uri", []string{"sqs", "send-message-batch", "--queue-url", "q", "--input", "s3://bucket-only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, ExitUsage, h.run(tt.args...), h.stderr.String())
			assert.NotEmpty(t, h.stderr.String())
		})
	}
}

func TestExecute_Whoami(t *testing.T) {
	h := newHarness(t)

	code := h.run("whoami", "--region", "eu-west-1")
	require.Equal(t, ExitOK, code, h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, "123456789012")
	assert.Contains(t, out, "eu-west-1")
}

func TestExecute_LogsAnalyze(t *testing.T) {
	h := newHarness(t)
	now := time.Now().UnixMilli()
	for i := 0; i < 4; i++ {
		h.clients.logs.events = append(h.clients.logs.events, logtypes.FilteredLogEvent{
			Timestamp:     aws.Int64(now - int64(i)*1000),
			Message:       aws.String(fmt.Sprintf("request %d served in %dms", i, 10+i)),
			LogStreamName: aws.String("s"),
		})
	}

	code := h.run("logs", "analyze", "--log-group", "/app", "--since", "10m", "--filter", "request", "-o", "json")
	require.Equal(t, ExitOK, code, h.stderr.String())

	var rep loganalytics.Report
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &rep))
	assert.Equal(t, 4, rep.Total)
	require.Len(t, rep.Patterns, 1)
	assert.Equal(t, 4, rep.Patterns[0].Count)

	require.NotNil(t, h.clients.logs.in)
	assert.Equal(t, "/app", aws.ToString(h.clients.logs.in.LogGroupName))
	assert.Equal(t, "request", aws.ToString(h.clients.logs.in.FilterPattern))
	assert.InDelta(t, float64(10*time.Minute/time.Millisecond),
		float64(aws.ToInt64(h.clients.logs.in.EndTime)-aws.ToInt64(h.clients.logs.in.StartTime)), 1)
}

func TestExecute_LogsAnalyzeTable(t *testing.T) {
	h := newHarness(t)
	h.clients.logs.events = []logtypes.FilteredLogEvent{
		{Timestamp: aws.Int64(time.Now().UnixMilli()), Message: aws.String("ERROR boom"), LogStreamName: aws.String("s")},
	}

	code := h.run("logs", "analyze", "-g", "/app")
	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "PATTERN")
	assert.Contains(t, h.stdout.String(), "ERROR boom")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitPartial, ExitCode(fmt.Errorf("%w: 1 failed", ErrPartialFailure)))
	assert.Equal(t, ExitUsage, ExitCode(usageErrorf("bad")))
	assert.Equal(t, ExitUsage, ExitCode(fmt.Errorf("x: %w", config.ErrInvalidConfig)))
	assert.Equal(t, ExitUsage, ExitCode(processor.ErrInvalidConfig))
	assert.Equal(t, ExitUsage, ExitCode(source.ErrInvalidURI))
	assert.Equal(t, ExitUsage, ExitCode(awsconf.ErrNoRegion))
}
