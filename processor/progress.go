package processor

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies a step of a batch's lifecycle.
type EventKind int

const (
	EventSubmit EventKind = iota + 1
	EventRetry
	EventDone
	EventGaveUp
)

func (k EventKind) String() string {
	switch k {
	case EventSubmit:
		return "submit"
	case EventRetry:
		return "retry"
	case EventDone:
		return "done"
	case EventGaveUp:
		return "gave-up"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a progress notification. Batch is 1-based.
type Event struct {
	Kind    EventKind
	Batch   int
	Batches int
	Attempt int
	Items   int
	Failed  int
	Delay   time.Duration
	Err     error
}

func (e Event) String() string {
	switch e.Kind {
	case EventSubmit:
		if e.Attempt == 0 {
			return fmt.Sprintf("batch %d/%d: submitting %d items", e.Batch, e.Batches, e.Items)
		}
		return fmt.Sprintf("batch %d/%d: resubmitting %d items (retry %d)", e.Batch, e.Batches, e.Items, e.Attempt)
	case EventRetry:
		s := fmt.Sprintf("batch %d/%d: %d unprocessed, retry %d in %s", e.Batch, e.Batches, e.Items, e.Attempt, e.Delay)
		if e.Err != nil {
			s += ": " + e.Err.Error()
		}
		return s
	case EventDone:
		return fmt.Sprintf("batch %d/%d: done", e.Batch, e.Batches)
	case EventGaveUp:
		return fmt.Sprintf("batch %d/%d: giving up on %d items after %d retries", e.Batch, e.Batches, e.Failed, e.Attempt)
	default:
		return fmt.Sprintf("batch %d/%d: %s", e.Batch, e.Batches, e.Kind)
	}
}

// Reporter receives progress events when Config.Verbose is set. It must not
// block for long; it is called from worker goroutines.
type Reporter func(Event)

// LogReporter writes events to logger at debug level.
func LogReporter(logger *zap.Logger) Reporter {
	return func(e Event) {
		fields := []zap.Field{
			zap.String("event", e.Kind.String()),
			zap.Int("batch", e.Batch),
			zap.Int("batches", e.Batches),
			zap.Int("attempt", e.Attempt),
			zap.Int("items", e.Items),
		}
		if e.Delay > 0 {
			fields = append(fields, zap.Duration("delay", e.Delay))
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		logger.Debug(e.String(), fields...)
	}
}
