package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/baldanca/awsbulk/batcher"
	"github.com/baldanca/awsbulk/encoder"
	"github.com/baldanca/awsbulk/metrics"
	"github.com/baldanca/awsbulk/processor"
	"github.com/baldanca/awsbulk/report"
	"github.com/baldanca/awsbulk/retry"
	"github.com/baldanca/awsbulk/sink"
	"github.com/baldanca/awsbulk/source"
	"github.com/baldanca/awsbulk/target"
	"github.com/baldanca/awsbulk/transformer"
)

// exportAttempts bounds the writes of a failure export.
const exportAttempts = 3

type batchFlags struct {
	input string

	batchSize      int
	maxConcurrency int
	maxRetries     int
	noRetry        bool
	baseDelay      time.Duration
	maxDelay       time.Duration

	failedOutput string
	failedFormat string
	failedSample int

	metricsNamespace string
	dryRun           bool
}

func addBatchFlags(cmd *cobra.Command, f *batchFlags) {
	d := processor.DefaultConfig
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "items to send: a file, s3://bucket/key or - for stdin (JSON array or JSON Lines)")
	fs.IntVar(&f.batchSize, "batch-size", d.BatchSize, "items per request, capped at the API limit")
	fs.IntVar(&f.maxConcurrency, "max-concurrency", d.MaxConcurrency, "requests in flight at once")
	fs.IntVar(&f.maxRetries, "max-retries", d.MaxRetries, "resubmissions of unprocessed items per batch")
	fs.BoolVar(&f.noRetry, "no-retry", false, "never resubmit unprocessed items")
	fs.DurationVar(&f.baseDelay, "base-delay", d.BaseDelay, "backoff base delay")
	fs.DurationVar(&f.maxDelay, "max-delay", d.MaxDelay, "backoff delay cap")
	fs.StringVar(&f.failedOutput, "failed-output", "", "write failed and invalid items to a file, s3://bucket/key or -")
	fs.StringVar(&f.failedFormat, "failed-format", encoder.FormatJSONL, "format of --failed-output: json, jsonl, csv or parquet")
	fs.IntVar(&f.failedSample, "failed-sample", 0, "print up to N failed items after the summary")
	fs.StringVar(&f.metricsNamespace, "metrics-namespace", "", "publish run metrics to this CloudWatch namespace")
	fs.BoolVar(&f.dryRun, "dry-run", false, "chunk and report without calling AWS")
}

// processorConfig applies the batch flags that were set on top of the loaded
// config and caps the batch size at limit.
func (a *app) processorConfig(cmd *cobra.Command, f *batchFlags, limit int) processor.Config {
	cfg := a.cfg.Processor
	fs := cmd.Flags()
	if fs.Changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if fs.Changed("max-concurrency") {
		cfg.MaxConcurrency = f.maxConcurrency
	}
	if fs.Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if fs.Changed("base-delay") {
		cfg.BaseDelay = f.baseDelay
	}
	if fs.Changed("max-delay") {
		cfg.MaxDelay = f.maxDelay
	}
	if f.noRetry {
		cfg.EnableRetry = false
	}
	if cfg.BatchSize > limit {
		a.logger.Debug("batch size capped at API limit",
			zap.Int("requested", cfg.BatchSize),
			zap.Int("limit", limit))
		cfg.BatchSize = limit
	}
	return cfg
}

func (a *app) metricsNamespace(cmd *cobra.Command, f *batchFlags) string {
	if cmd.Flags().Changed("metrics-namespace") {
		return f.metricsNamespace
	}
	return a.cfg.MetricsNamespace
}

// batchJob describes one bulk command in terms of its item type.
type batchJob[X any] struct {
	command   string
	limit     int
	transform transformer.Transformer[X]
	// expand optionally rewrites the raw inputs before transformation.
	expand func(envs []source.Envelope) ([]source.Envelope, error)
	target func(c Clients) target.Operation[X]
}

// runBatch is the pipeline shared by every bulk command: read, transform,
// process, report, export failures and publish metrics.
func runBatch[X any](ctx context.Context, a *app, cmd *cobra.Command, f *batchFlags, job batchJob[X]) error {
	if f.input == "" {
		return usageErrorf("--input is required")
	}

	var failedEnc encoder.Encoder[report.FailureRecord]
	if f.failedOutput != "" {
		enc, err := encoder.For[report.FailureRecord](f.failedFormat)
		if err != nil {
			return &usageError{err: err}
		}
		failedEnc = enc
	}

	pcfg := a.processorConfig(cmd, f, job.limit)
	p, err := processor.New[transformer.Item[X]](pcfg, processor.WithLogger(a.logger))
	if err != nil {
		return err
	}

	envs, err := a.readInput(ctx, f.input)
	if err != nil {
		return err
	}
	if job.expand != nil {
		if envs, err = job.expand(envs); err != nil {
			return err
		}
	}

	items, invalid, err := transformer.All(ctx, job.transform, envs)
	if err != nil {
		return err
	}
	for _, e := range invalid {
		a.logger.Debug("invalid item", zap.Int("index", e.Index), zap.Error(e.Err))
	}
	if len(invalid) > 0 {
		a.logger.Warn("skipping invalid items", zap.Int("invalid", len(invalid)))
	}

	var op target.Operation[X] = target.DryRun[X]{Max: job.limit}
	if !f.dryRun {
		c, err := a.awsClients(ctx)
		if err != nil {
			return err
		}
		op = job.target(c)
	}

	run := p.Config()
	a.logger.Info("starting run",
		zap.String("command", job.command),
		zap.Int("items", len(items)),
		zap.Int("batches", batcher.Count(len(items), run.BatchSize)),
		zap.Int("batch_size", run.BatchSize),
		zap.Int("max_concurrency", run.MaxConcurrency),
		zap.Bool("retry", run.RetryEnabled()),
		zap.Bool("dry_run", f.dryRun))

	start := time.Now()
	res, procErr := p.Process(ctx, items, op.Submit)

	sum := report.NewSummary(job.command, a.runID, res, len(invalid), time.Since(start))
	sum.DryRun = f.dryRun

	a.logger.Info("run finished",
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Int("invalid", sum.Invalid),
		zap.Int("retries", sum.Retries),
		zap.Duration("took", sum.Duration()))

	reason := "unprocessed after retries"
	if procErr != nil {
		reason = "aborted: " + procErr.Error()
	}
	failures := report.Failures(res.Failed, reason, invalid, envs)

	if err := writeRows(ctx, a, []report.Summary{sum}); err != nil {
		return err
	}
	if n := min(f.failedSample, len(failures)); n > 0 {
		if err := writeRows(ctx, a, failures[:n]); err != nil {
			return err
		}
	}

	var exportErr error
	if failedEnc != nil && len(failures) > 0 {
		exportErr = a.exportFailures(ctx, failedEnc, f.failedOutput, failures)
	}

	if ns := a.metricsNamespace(cmd, f); ns != "" && !f.dryRun {
		if c, err := a.awsClients(ctx); err == nil {
			// Publish logs its own failures; metrics never fail a run.
			_ = metrics.NewPublisher(c.CloudWatch(), ns, a.logger).Publish(ctx, sum)
		}
	}

	switch {
	case procErr != nil:
		return procErr
	case exportErr != nil:
		return exportErr
	case !sum.OK():
		return fmt.Errorf("%w: %d failed, %d invalid of %d", ErrPartialFailure, sum.Failed, sum.Invalid, sum.Total)
	}
	return nil
}

func (a *app) readInput(ctx context.Context, uri string) ([]source.Envelope, error) {
	if uri == "-" {
		return source.Read(a.opts.Stdin)
	}
	var client source.S3API
	if strings.HasPrefix(uri, "s3://") {
		c, err := a.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		client = c.S3()
	}
	return source.Open(ctx, uri, client)
}

func (a *app) exportFailures(ctx context.Context, enc encoder.Encoder[report.FailureRecord], uri string, recs []report.FailureRecord) error {
	var (
		dest sink.Destination
		err  error
	)
	switch {
	case uri == "-":
		dest = sink.Destination{Sink: sink.NewWriter(a.opts.Stdout), Key: "-"}
	case strings.HasPrefix(uri, "s3://"):
		c, cerr := a.awsClients(ctx)
		if cerr != nil {
			return cerr
		}
		dest, err = sink.Open(uri, c.S3())
	default:
		dest, err = sink.Open(uri, nil)
	}
	if err != nil {
		return &usageError{err: err}
	}

	policy := retry.Simple{Attempts: exportAttempts, Backoff: retry.DefaultBackoff}
	if err := sink.Export(ctx, enc, dest.Sink, policy, dest.Key, recs); err != nil {
		a.logger.Error("failed to export failed items", zap.Stringer("destination", dest), zap.Error(err))
		return fmt.Errorf("export failed items to %s: %w", dest, err)
	}
	a.logger.Info("exported failed items", zap.Stringer("destination", dest), zap.Int("items", len(recs)))
	return nil
}

// writeRows prints rows to stdout in the configured output format.
func writeRows[T encoder.Tabular](ctx context.Context, a *app, rows []T) error {
	enc, err := encoder.For[T](a.cfg.Output)
	if err != nil {
		return &usageError{err: err}
	}
	return sink.Export(ctx, enc, sink.NewWriter(a.opts.Stdout), nil, "-", rows)
}
