package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/baldanca/awsbulk/processor"
	"github.com/baldanca/awsbulk/source"
	"github.com/baldanca/awsbulk/transformer"
)

// Summary describes one bulk run.
type Summary struct {
	Command     string  `json:"command" parquet:"command"`
	RunID       string  `json:"run_id" parquet:"run_id"`
	Total       int     `json:"total" parquet:"total"`
	Processed   int     `json:"processed" parquet:"processed"`
	Failed      int     `json:"failed" parquet:"failed"`
	Invalid     int     `json:"invalid" parquet:"invalid"`
	Batches     int     `json:"batches" parquet:"batches"`
	Submissions int     `json:"submissions" parquet:"submissions"`
	Retries     int     `json:"retries" parquet:"retries"`
	DryRun      bool    `json:"dry_run" parquet:"dry_run"`
	Seconds     float64 `json:"duration_seconds" parquet:"duration_seconds"`
}

// NewSummary builds a Summary from a processor result. invalid is the number
// of inputs rejected before submission.
func NewSummary[X any](command, runID string, res processor.Result[transformer.Item[X]], invalid int, took time.Duration) Summary {
	return Summary{
		Command:     command,
		RunID:       runID,
		Total:       res.Total() + invalid,
		Processed:   len(res.Processed),
		Failed:      len(res.Failed),
		Invalid:     invalid,
		Batches:     res.Batches,
		Submissions: res.Submissions,
		Retries:     res.Retries,
		Seconds:     took.Seconds(),
	}
}

// Duration returns the run time.
func (s Summary) Duration() time.Duration {
	return time.Duration(s.Seconds * float64(time.Second))
}

// OK reports whether every input was processed.
func (s Summary) OK() bool { return s.Failed == 0 && s.Invalid == 0 }

func (s Summary) Columns() []string {
	return []string{"command", "run_id", "total", "processed", "failed", "invalid", "batches", "submissions", "retries", "dry_run", "duration"}
}

func (s Summary) Values() []string {
	return []string{
		s.Command,
		s.RunID,
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Processed),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Invalid),
		strconv.Itoa(s.Batches),
		strconv.Itoa(s.Submissions),
		strconv.Itoa(s.Retries),
		strconv.FormatBool(s.DryRun),
		s.Duration().Round(time.Millisecond).String(),
	}
}

// FailureRecord is one input that did not reach AWS.
type FailureRecord struct {
	Index   int    `json:"index" parquet:"index"`
	Reason  string `json:"reason" parquet:"reason"`
	Payload string `json:"payload" parquet:"payload"`
}

func (r FailureRecord) Columns() []string { return []string{"index", "reason", "payload"} }

func (r FailureRecord) Values() []string {
	return []string{strconv.Itoa(r.Index), r.Reason, r.Payload}
}

// Failures lists failed and invalid inputs ordered by input index. reason is
// used for every item in failed.
func Failures[X any](failed []transformer.Item[X], reason string, invalid []transformer.ItemError, envs []source.Envelope) []FailureRecord {
	out := make([]FailureRecord, 0, len(failed)+len(invalid))
	for _, it := range failed {
		out = append(out, FailureRecord{
			Index:   it.Source.Index,
			Reason:  reason,
			Payload: string(it.Source.Payload),
		})
	}
	for _, e := range invalid {
		rec := FailureRecord{Index: e.Index, Reason: e.Err.Error()}
		if e.Index >= 0 && e.Index < len(envs) {
			rec.Payload = string(envs[e.Index].Payload)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
