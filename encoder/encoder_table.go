package encoder

import (
	"bytes"
	"context"
	"io"
	"strings"
	"text/tabwriter"
)

// Table renders items as aligned, human readable columns.
type Table[iType Tabular] struct {
	// NoHeader suppresses the header row.
	NoHeader bool
}

func (e Table[iType]) FileExtension() string { return ".txt" }
func (e Table[iType]) ContentType() string   { return "text/plain; charset=utf-8" }

func (e Table[iType]) Encode(ctx context.Context, items []iType) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e Table[iType]) EncodeTo(ctx context.Context, items []iType, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !e.NoHeader {
		var zero iType
		cols := zero.Columns()
		upper := make([]string, len(cols))
		for i, c := range cols {
			upper[i] = strings.ToUpper(c)
		}
		if _, err := io.WriteString(tw, strings.Join(upper, "\t")+"\n"); err != nil {
			return err
		}
	}
	for i := range items {
		vals := items[i].Values()
		for j, v := range vals {
			// cells must stay on one line
			vals[j] = strings.NewReplacer("\t", " ", "\n", " ").Replace(v)
		}
		if _, err := io.WriteString(tw, strings.Join(vals, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}
