// Package cli implements the awsbulk command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/baldanca/awsbulk/awsconf"
	"github.com/baldanca/awsbulk/config"
	"github.com/baldanca/awsbulk/logging"
	"github.com/baldanca/awsbulk/processor"
	"github.com/baldanca/awsbulk/source"
)

// Exit codes returned by Execute.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitUsage   = 2
	ExitPartial = 3
)

// ErrPartialFailure is returned when a run finished but some items were not
// processed.
var ErrPartialFailure = errors.New("some items were not processed")

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var uerr *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPartialFailure):
		return ExitPartial
	case errors.As(err, &uerr),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, processor.ErrInvalidConfig),
		errors.Is(err, source.ErrInvalidURI),
		errors.Is(err, awsconf.ErrNoRegion):
		return ExitUsage
	default:
		return ExitError
	}
}

// Options wires the command tree to its environment. Zero fields use the
// process's stdio and the SDK-backed client factory.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	NewClients ClientFactory
}

func (o Options) withDefaults() Options {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.NewClients == nil {
		o.NewClients = NewClients
	}
	return o
}

type globalFlags struct {
	configPath  string
	region      string
	profile     string
	endpointURL string
	output      string
	logFormat   string
	verbose     bool
}

// app is the state shared by every command of one invocation.
type app struct {
	opts   Options
	flags  globalFlags
	runID  string
	cfg    config.Config
	logger *zap.Logger

	clients Clients
	started bool
}

func newApp(o Options) *app {
	return &app{
		opts:   o.withDefaults(),
		runID:  uuid.NewString(),
		cfg:    config.Default(),
		logger: zap.NewNop(),
	}
}

// NewRootCommand builds the awsbulk command tree.
func NewRootCommand(o Options) *cobra.Command {
	return newApp(o).rootCommand()
}

// Execute runs awsbulk with args and returns the exit code. Errors are
// printed to Options.Stderr.
func Execute(ctx context.Context, args []string, o Options) int {
	a := newApp(o)
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	_ = a.logger.Sync()
	if err == nil {
		return ExitOK
	}
	if !a.started {
		// cobra rejected the command line before any command ran
		err = &usageError{err: err}
	}
	fmt.Fprintf(a.opts.Stderr, "awsbulk: %v\n", err)
	return ExitCode(err)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "awsbulk",
		Short: "Bulk writes to DynamoDB, SQS and EventBridge with batching and retries",
		Long: `awsbulk reads items from a file, stdin or S3, splits them into batches
sized for the target API, submits the batches concurrently and resubmits
the items AWS reports as unprocessed with exponential backoff.

Settings come from $HOME/.awsbulk.yaml (or --config), then AWSBULK_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			return a.setup(cmd)
		},
	}
	root.SetIn(a.opts.Stdin)
	root.SetOut(a.opts.Stdout)
	root.SetErr(a.opts.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := root.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "config file (default $HOME/"+config.DefaultFile+")")
	f.StringVar(&a.flags.region, "region", "", "AWS region")
	f.StringVar(&a.flags.profile, "profile", "", "AWS shared config profile")
	f.StringVar(&a.flags.endpointURL, "endpoint-url", "", "override the AWS endpoint, e.g. http://localhost:4566")
	f.StringVarP(&a.flags.output, "output", "o", "", "output format: table, json, jsonl or csv")
	f.StringVar(&a.flags.logFormat, "log-format", "", "log format: console or json")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log every batch submission and retry")

	root.AddCommand(
		a.dynamodbCommand(),
		a.sqsCommand(),
		a.eventsCommand(),
		a.logsCommand(),
		a.whoamiCommand(),
	)
	return root
}

// setup loads the configuration, applies global flags and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			return err
		}
		return &usageError{err: err}
	}

	fs := cmd.Flags()
	overrides := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"region", &cfg.AWS.Region, a.flags.region},
		{"profile", &cfg.AWS.Profile, a.flags.profile},
		{"endpoint-url", &cfg.AWS.EndpointURL, a.flags.endpointURL},
		{"output", &cfg.Output, a.flags.output},
		{"log-format", &cfg.Log.Format, a.flags.logFormat},
	}
	for _, o := range overrides {
		if fs.Changed(o.flag) {
			*o.dst = o.val
		}
	}
	if a.flags.verbose {
		cfg.Processor.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Verbose: cfg.Processor.Verbose,
		Format:  cfg.Log.Format,
		Output:  a.opts.Stderr,
	})
	if err != nil {
		return &usageError{err: err}
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("run_id", a.runID))
	if cfg.Source != "" {
		a.logger.Debug("loaded config", zap.String("path", cfg.Source))
	}
	return nil
}

// awsClients resolves the service clients on first use.
func (a *app) awsClients(ctx context.Context) (Clients, error) {
	if a.clients != nil {
		return a.clients, nil
	}
	c, err := a.opts.NewClients(ctx, awsconf.Options{
		Region:          a.cfg.AWS.Region,
		Profile:         a.cfg.AWS.Profile,
		EndpointURL:     a.cfg.AWS.EndpointURL,
		AccessKeyID:     a.cfg.AWS.AccessKeyID,
		SecretAccessKey: a.cfg.AWS.SecretAccessKey,
		SessionToken:    a.cfg.AWS.SessionToken,
	})
	if err != nil {
		return nil, err
	}
	a.clients = c
	return c, nil
}
