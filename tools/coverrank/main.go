// Command coverrank lists the files of a Go coverprofile with the lowest
// statement coverage first.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baldanca/awsbulk/encoder"
	"github.com/baldanca/awsbulk/sink"
)

type agg struct {
	Total   int64
	Covered int64
}

type fileStat struct {
	File     string  `json:"file"`
	Total    int64   `json:"total"`
	Covered  int64   `json:"covered"`
	CoverPct float64 `json:"cover_pct"`
}

func (s fileStat) Columns() []string { return []string{"cover", "covered", "total", "file"} }

func (s fileStat) Values() []string {
	return []string{
		strconv.FormatFloat(s.CoverPct, 'f', 2, 64) + "%",
		strconv.FormatInt(s.Covered, 10),
		strconv.FormatInt(s.Total, 10),
		s.File,
	}
}

func main() {
	if err := newCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coverrank: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cobra.Command {
	var (
		coverFile string
		topN      int
		minTotal  int64
		format    string
	)
	cmd := &cobra.Command{
		Use:           "coverrank",
		Short:         "Rank files by statement coverage, worst first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := readCoverProfile(coverFile)
			if err != nil {
				return err
			}
			list, overall := rank(stats, minTotal)
			if topN >= 0 && topN < len(list) {
				list = list[:topN]
			}

			enc, err := encoder.For[fileStat](format)
			if err != nil {
				return err
			}
			if err := sink.Export(cmd.Context(), enc, sink.NewWriter(out), nil, "-", list); err != nil {
				return err
			}
			if format == encoder.FormatTable {
				fmt.Fprintf(out, "\noverall: %.2f%%\n", overall)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&coverFile, "coverprofile", "coverage.out", "path to coverprofile")
	cmd.Flags().IntVar(&topN, "top", 30, "how many files to print (-1 for all)")
	cmd.Flags().Int64Var(&minTotal, "min-total", 1, "min statements to include")
	cmd.Flags().StringVarP(&format, "output", "o", encoder.FormatTable, "table, json, jsonl or csv")
	return cmd
}

// rank orders files by coverage ascending, larger files first on ties, and
// returns the statement-weighted coverage of the files included.
func rank(stats map[string]*agg, minTotal int64) ([]fileStat, float64) {
	list := make([]fileStat, 0, len(stats))
	var tot, cov int64
	for f, st := range stats {
		if st.Total < minTotal {
			continue
		}
		pct := 0.0
		if st.Total > 0 {
			pct = float64(st.Covered) * 100.0 / float64(st.Total)
		}
		list = append(list, fileStat{File: f, Total: st.Total, Covered: st.Covered, CoverPct: pct})
		tot += st.Total
		cov += st.Covered
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CoverPct == list[j].CoverPct {
			if list[i].Total == list[j].Total {
				return list[i].File < list[j].File
			}
			return list[i].Total > list[j].Total
		}
		return list[i].CoverPct < list[j].CoverPct
	})

	overall := 0.0
	if tot > 0 {
		overall = float64(cov) * 100.0 / float64(tot)
	}
	return list, overall
}

func readCoverProfile(path string) (map[string]*agg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coverprofile: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseCoverProfile(f)
}

// coverprofile line format:
// <file>:<startLine>.<startCol>,<endLine>.<endCol> <numStmts> <count>
func parseCoverProfile(r io.Reader) (map[string]*agg, error) {
	sc := bufio.NewScanner(r)
	stats := map[string]*agg{}

	// First line: "mode: set"
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		return nil, fmt.Errorf("empty coverprofile")
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid cover line: %q", line)
		}

		idx := strings.LastIndex(parts[0], ":")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid file/range: %q", parts[0])
		}
		file := parts[0][:idx]

		numStmts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse numStmts %q: %w", parts[1], err)
		}
		count, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse count %q: %w", parts[2], err)
		}

		st := stats[file]
		if st == nil {
			st = &agg{}
			stats[file] = st
		}
		st.Total += numStmts
		if count > 0 {
			st.Covered += numStmts
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return stats, nil
}
