package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/baldanca/awsbulk/encoder"
	"github.com/baldanca/awsbulk/loganalytics"
)

func (a *app) logsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "CloudWatch Logs tools",
	}
	cmd.AddCommand(a.logsAnalyzeCommand())
	return cmd
}

func (a *app) logsAnalyzeCommand() *cobra.Command {
	var (
		q         loganalytics.Query
		since     time.Duration
		opts      loganalytics.Options
		bucket    time.Duration
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Group recent log events into patterns and flag anomalies",
		Long: `Fetches the events of a log group, replaces variable tokens (numbers, ids,
addresses, timestamps, quoted strings) with placeholders and counts the
resulting patterns. Time buckets with unusually many events and error patterns
that occur rarely are reported as anomalies.`,
		Example: `  awsbulk logs analyze --log-group /aws/lambda/orders --since 30m --filter ERROR`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if q.LogGroup == "" {
				return usageErrorf("--log-group is required")
			}
			if since <= 0 {
				return usageErrorf("--since must be positive, got %s", since)
			}
			ctx := cmd.Context()
			c, err := a.awsClients(ctx)
			if err != nil {
				return err
			}

			q.End = time.Now()
			q.Start = q.End.Add(-since)
			events, err := loganalytics.NewFetcher(c.CloudWatchLogs()).Fetch(ctx, q)
			if err != nil {
				return err
			}

			opts.BucketSize = bucket
			opts.Threshold = threshold
			rep := loganalytics.Analyze(events, opts)
			a.logger.Info("analyzed log events",
				zap.String("log_group", q.LogGroup),
				zap.Int("events", rep.Total),
				zap.Int("patterns", len(rep.Patterns)),
				zap.Int("anomalies", len(rep.Anomalies)))
			return a.writeAnalysis(ctx, rep)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&q.LogGroup, "log-group", "g", "", "log group name")
	fs.StringSliceVar(&q.Streams, "log-stream", nil, "restrict to these log streams")
	fs.StringVar(&q.Filter, "filter", "", "CloudWatch Logs filter pattern")
	fs.IntVar(&q.Limit, "limit", 0, "stop after this many events (0 for all)")
	fs.DurationVar(&since, "since", time.Hour, "how far back to look")
	fs.IntVar(&opts.TopN, "top", 20, "patterns to show (-1 for all)")
	fs.DurationVar(&bucket, "bucket", time.Minute, "time bucket used for spike detection")
	fs.Float64Var(&threshold, "threshold", 2, "standard deviations above the mean that make a spike")
	return cmd
}

// writeAnalysis prints the report. JSON formats print the report as one
// document; tabular formats print patterns, then anomalies when any.
func (a *app) writeAnalysis(ctx context.Context, rep loganalytics.Report) error {
	switch a.cfg.Output {
	case encoder.FormatJSON, encoder.FormatJSONL:
		enc := json.NewEncoder(a.opts.Stdout)
		enc.SetEscapeHTML(false)
		if a.cfg.Output == encoder.FormatJSON {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(rep)
	}

	if err := writeRows(ctx, a, rep.Patterns); err != nil {
		return err
	}
	if len(rep.Anomalies) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(a.opts.Stdout); err != nil {
		return err
	}
	return writeRows(ctx, a, rep.Anomalies)
}
