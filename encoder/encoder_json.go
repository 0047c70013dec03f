package encoder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// JSON writes items as a single JSON array.
type JSON[iType any] struct {
	// Indent (optional) pretty-prints the array.
	Indent string
}

func (e JSON[iType]) FileExtension() string { return ".json" }
func (e JSON[iType]) ContentType() string   { return "application/json" }

func (e JSON[iType]) Encode(ctx context.Context, items []iType) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e JSON[iType]) EncodeTo(ctx context.Context, items []iType, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if items == nil {
		items = []iType{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	return enc.Encode(items)
}

// JSONL writes one JSON document per line.
type JSONL[iType any] struct{}

func (e JSONL[iType]) FileExtension() string { return ".jsonl" }
func (e JSONL[iType]) ContentType() string   { return "application/x-ndjson" }

func (e JSONL[iType]) Encode(ctx context.Context, items []iType) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e JSONL[iType]) EncodeTo(ctx context.Context, items []iType, w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i := range items {
		if i%1024 == 0 {
			if err := checkCtx(ctx); err != nil {
				return err
			}
		}
		if err := enc.Encode(items[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
