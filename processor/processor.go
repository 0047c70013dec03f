package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/baldanca/awsbulk/batcher"
	"github.com/baldanca/awsbulk/retry"
)

// Outcome is the result of submitting one batch: a partition of the submitted
// items into those the remote side applied and those it rejected.
type Outcome[iType any] struct {
	Processed   []iType
	Unprocessed []iType
}

// Partition builds an Outcome by asking rejected about each position of batch.
func Partition[iType any](batch []iType, rejected func(i int) bool) Outcome[iType] {
	var out Outcome[iType]
	for i := range batch {
		if rejected(i) {
			out.Unprocessed = append(out.Unprocessed, batch[i])
		} else {
			out.Processed = append(out.Processed, batch[i])
		}
	}
	return out
}

// BatchOperation submits batch to the remote side. Returning an error means
// the whole batch is unprocessed; wrap it with Fatal to abort the run.
type BatchOperation[iType any] func(ctx context.Context, batch []iType) (Outcome[iType], error)

// Result aggregates all batches of one Process call. Processed and Failed are
// not in input order.
type Result[iType any] struct {
	Processed []iType
	Failed    []iType

	Batches     int
	Submissions int
	Retries     int
}

// Total is the number of items accounted for.
func (r Result[iType]) Total() int { return len(r.Processed) + len(r.Failed) }

type Option func(*options)

type options struct {
	logger   *zap.Logger
	reporter Reporter
	rand     func(n int64) int64
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithLogger sets the logger used for warnings and, when no Reporter is
// given, for verbose progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReporter sets the progress callback used when Config.Verbose is set.
func WithReporter(r Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithRand overrides the jitter source.
func WithRand(fn func(n int64) int64) Option {
	return func(o *options) { o.rand = fn }
}

// WithSleep overrides how backoff delays are waited out.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// Processor splits items into batches, submits them with bounded concurrency
// and retries partial failures with backoff. It is safe for concurrent use.
type Processor[iType any] struct {
	cfg     Config
	backoff retry.Backoff
	logger  *zap.Logger
	report  Reporter
	sleep   func(ctx context.Context, d time.Duration) error
}

func New[iType any](cfg Config, opts ...Option) (*Processor[iType], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop(), sleep: retry.Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	bo := cfg.Backoff()
	bo.Rand = o.rand

	p := &Processor[iType]{
		cfg:     cfg,
		backoff: bo,
		logger:  o.logger,
		sleep:   o.sleep,
	}
	if cfg.Verbose {
		p.report = o.reporter
		if p.report == nil {
			p.report = LogReporter(o.logger)
		}
	}
	return p, nil
}

// Config returns the processor's configuration.
func (p *Processor[iType]) Config() Config { return p.cfg }

// Process runs op over items. Items that are still unprocessed after the
// retry budget are returned in Result.Failed; that is not an error.
//
// The returned error is non-nil only when op returned a Fatal error or ctx
// ended; Result is still complete in that case, with every item that did
// not reach the remote side counted as failed.
func (p *Processor[iType]) Process(ctx context.Context, items []iType, op BatchOperation[iType]) (Result[iType], error) {
	if op == nil {
		return Result[iType]{}, errors.New("batch operation is nil")
	}
	if len(items) == 0 {
		return Result[iType]{Processed: []iType{}, Failed: []iType{}}, nil
	}

	batches, err := batcher.Chunk(items, p.cfg.BatchSize)
	if err != nil {
		return Result[iType]{}, err
	}

	acc := &accumulator[iType]{}
	acc.res.Batches = len(batches)
	acc.res.Processed = make([]iType, 0, len(items))

	dispatched, err := runPool(ctx, len(batches), p.cfg.MaxConcurrency, func(ctx context.Context, i int) error {
		return p.runBatch(ctx, i, batches, op, acc)
	})

	for _, b := range batches[dispatched:] {
		acc.fail(b)
	}

	res := acc.res
	if res.Failed == nil {
		res.Failed = []iType{}
	}

	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Processor[iType]) runBatch(ctx context.Context, idx int, batches [][]iType, op BatchOperation[iType], acc *accumulator[iType]) error {
	ev := Event{Batch: idx + 1, Batches: len(batches)}
	pending := batches[idx]

	for attempt := 0; ; {
		if ctx.Err() != nil {
			acc.fail(pending)
			return nil
		}

		ev.Kind, ev.Attempt, ev.Items, ev.Err = EventSubmit, attempt, len(pending), nil
		p.emit(ev)

		acc.submitted()
		out, opErr := op(ctx, pending)
		if opErr != nil {
			if IsFatal(opErr) {
				acc.fail(pending)
				return fmt.Errorf("batch %d/%d: %w", ev.Batch, ev.Batches, opErr)
			}
			out = Outcome[iType]{Unprocessed: pending}
		} else if len(out.Processed)+len(out.Unprocessed) != len(pending) {
			acc.fail(pending)
			return Fatal(fmt.Errorf("%w: batch %d/%d submitted %d, got %d processed + %d unprocessed",
				ErrOutcomeMismatch, ev.Batch, ev.Batches, len(pending), len(out.Processed), len(out.Unprocessed)))
		}

		acc.done(out.Processed)

		if len(out.Unprocessed) == 0 {
			ev.Kind = EventDone
			p.emit(ev)
			return nil
		}

		if !p.cfg.RetryEnabled() || attempt >= p.cfg.MaxRetries {
			acc.fail(out.Unprocessed)
			ev.Kind, ev.Failed, ev.Err = EventGaveUp, len(out.Unprocessed), opErr
			p.emit(ev)
			p.logger.Warn("batch items left unprocessed",
				zap.Int("batch", ev.Batch),
				zap.Int("failed", len(out.Unprocessed)),
				zap.Int("retries", attempt),
				zap.Error(opErr))
			return nil
		}

		attempt++
		delay := p.backoff.Delay(attempt)

		ev.Kind, ev.Attempt, ev.Items, ev.Delay, ev.Err = EventRetry, attempt, len(out.Unprocessed), delay, opErr
		p.emit(ev)
		ev.Delay = 0

		acc.retried()
		if err := p.sleep(ctx, delay); err != nil {
			acc.fail(out.Unprocessed)
			return nil
		}
		pending = out.Unprocessed
	}
}

func (p *Processor[iType]) emit(e Event) {
	if p.report != nil {
		p.report(e)
	}
}

type accumulator[iType any] struct {
	mu  sync.Mutex
	res Result[iType]
}

func (a *accumulator[iType]) done(items []iType) {
	if len(items) == 0 {
		return
	}
	a.mu.Lock()
	a.res.Processed = append(a.res.Processed, items...)
	a.mu.Unlock()
}

func (a *accumulator[iType]) fail(items []iType) {
	if len(items) == 0 {
		return
	}
	a.mu.Lock()
	a.res.Failed = append(a.res.Failed, items...)
	a.mu.Unlock()
}

func (a *accumulator[iType]) submitted() {
	a.mu.Lock()
	a.res.Submissions++
	a.mu.Unlock()
}

func (a *accumulator[iType]) retried() {
	a.mu.Lock()
	a.res.Retries++
	a.mu.Unlock()
}
