package encoder

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
)

// CSV writes a header row followed by one row per item.
type CSV[iType Tabular] struct{}

func (e CSV[iType]) FileExtension() string { return ".csv" }
func (e CSV[iType]) ContentType() string   { return "text/csv" }

func (e CSV[iType]) Encode(ctx context.Context, items []iType) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e CSV[iType]) EncodeTo(ctx context.Context, items []iType, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	var zero iType
	if err := cw.Write(zero.Columns()); err != nil {
		return err
	}
	for i := range items {
		if err := cw.Write(items[i].Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
