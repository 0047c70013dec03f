package loganalytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Options tune Analyze. Zero values pick the defaults.
type Options struct {
	// BucketSize is the width of the time buckets used for spike detection
	// (default 1m).
	BucketSize time.Duration
	// Threshold is how many standard deviations above the mean a bucket must
	// be to count as a spike (default 2).
	Threshold float64
	// TopN caps Report.Patterns (default 10, negative for all).
	TopN int
	// RareRatio is the share of events below which an error pattern is
	// reported as rare (default 0.01).
	RareRatio float64
}

func (o Options) withDefaults() Options {
	if o.BucketSize <= 0 {
		o.BucketSize = time.Minute
	}
	if o.Threshold <= 0 {
		o.Threshold = 2
	}
	if o.TopN == 0 {
		o.TopN = 10
	}
	if o.RareRatio <= 0 {
		o.RareRatio = 0.01
	}
	return o
}

type PatternStat struct {
	Pattern   string    `json:"pattern"`
	Count     int       `json:"count"`
	Percent   float64   `json:"percent"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sample    string    `json:"sample"`
}

func (p PatternStat) Columns() []string {
	return []string{"count", "percent", "first_seen", "last_seen", "pattern"}
}

func (p PatternStat) Values() []string {
	return []string{
		strconv.Itoa(p.Count),
		strconv.FormatFloat(p.Percent, 'f', 2, 64),
		p.FirstSeen.Format(time.RFC3339),
		p.LastSeen.Format(time.RFC3339),
		p.Pattern,
	}
}

const (
	AnomalySpike     = "spike"
	AnomalyRareError = "rare-error"
)

type Anomaly struct {
	Kind     string    `json:"kind"`
	Start    time.Time `json:"start"`
	Count    int       `json:"count"`
	Expected float64   `json:"expected"`
	Pattern  string    `json:"pattern,omitempty"`
	Detail   string    `json:"detail"`
}

func (a Anomaly) Columns() []string { return []string{"kind", "start", "count", "detail"} }

func (a Anomaly) Values() []string {
	return []string{a.Kind, a.Start.Format(time.RFC3339), strconv.Itoa(a.Count), a.Detail}
}

type Report struct {
	Total     int           `json:"total"`
	Patterns  []PatternStat `json:"patterns"`
	Anomalies []Anomaly     `json:"anomalies"`
}

// Analyze groups events by pattern and flags volume spikes and rare error
// patterns.
func Analyze(events []Event, opts Options) Report {
	opts = opts.withDefaults()
	rep := Report{Total: len(events), Patterns: []PatternStat{}, Anomalies: []Anomaly{}}
	if len(events) == 0 {
		return rep
	}

	stats := map[string]*PatternStat{}
	for _, e := range events {
		pat := ExtractPattern(e.Message)
		st, ok := stats[pat]
		if !ok {
			st = &PatternStat{Pattern: pat, FirstSeen: e.Time, LastSeen: e.Time, Sample: e.Message}
			stats[pat] = st
		}
		st.Count++
		if e.Time.Before(st.FirstSeen) {
			st.FirstSeen = e.Time
		}
		if e.Time.After(st.LastSeen) {
			st.LastSeen = e.Time
		}
	}

	all := make([]PatternStat, 0, len(stats))
	for _, st := range stats {
		st.Percent = 100 * float64(st.Count) / float64(len(events))
		all = append(all, *st)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Pattern < all[j].Pattern
	})

	rep.Anomalies = append(rep.Anomalies, spikes(events, opts)...)
	rep.Anomalies = append(rep.Anomalies, rareErrors(all, len(events), opts)...)

	if opts.TopN > 0 && len(all) > opts.TopN {
		all = all[:opts.TopN]
	}
	rep.Patterns = all
	return rep
}

func spikes(events []Event, opts Options) []Anomaly {
	counts := map[int64]int{}
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	width := int64(opts.BucketSize)
	for _, e := range events {
		b := e.Time.UnixNano() / width
		counts[b]++
		lo = min(lo, b)
		hi = max(hi, b)
	}

	n := hi - lo + 1
	if n < 3 {
		return nil
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(n)

	var sq float64
	for b := lo; b <= hi; b++ {
		d := float64(counts[b]) - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(n))
	if stddev == 0 {
		return nil
	}

	limit := mean + opts.Threshold*stddev
	var out []Anomaly
	for b := lo; b <= hi; b++ {
		c := counts[b]
		if float64(c) <= limit {
			continue
		}
		out = append(out, Anomaly{
			Kind:     AnomalySpike,
			Start:    time.Unix(0, b*width).UTC(),
			Count:    c,
			Expected: mean,
			Detail:   fmt.Sprintf("%d events in %s, mean %.1f, stddev %.1f", c, opts.BucketSize, mean, stddev),
		})
	}
	return out
}

func rareErrors(stats []PatternStat, total int, opts Options) []Anomaly {
	var out []Anomaly
	for _, st := range stats {
		if !IsError(st.Pattern) || float64(st.Count)/float64(total) >= opts.RareRatio {
			continue
		}
		out = append(out, Anomaly{
			Kind:     AnomalyRareError,
			Start:    st.FirstSeen,
			Count:    st.Count,
			Expected: opts.RareRatio * float64(total),
			Pattern:  st.Pattern,
			Detail:   fmt.Sprintf("rare error pattern (%.2f%% of events): %s", st.Percent, st.Sample),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
