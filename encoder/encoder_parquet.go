package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

type ParquetEncoder[iType any] struct {
	// Compression (optional): "", "none", "snappy", "gzip", "zstd"
	Compression string
}

func (e ParquetEncoder[iType]) FileExtension() string { return ".parquet" }
func (e ParquetEncoder[iType]) ContentType() string   { return "application/vnd.apache.parquet" }

func (e ParquetEncoder[iType]) Encode(ctx context.Context, items []iType) ([]byte, error) {
	output := &bytes.Buffer{}
	if err := e.EncodeTo(ctx, items, output); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

func (e ParquetEncoder[iType]) EncodeTo(ctx context.Context, items []iType, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	options := make([]parquet.WriterOption, 0, 1)

	switch e.Compression {
	case "", "none":
		// no compression
	case "snappy":
		options = append(options, parquet.Compression(&parquet.Snappy))
	case "gzip":
		options = append(options, parquet.Compression(&parquet.Gzip))
	case "zstd":
		options = append(options, parquet.Compression(&parquet.Zstd))
	default:
		return fmt.Errorf("unsupported parquet compression: %q", e.Compression)
	}

	pw := parquet.NewGenericWriter[iType](w, options...)

	if _, err := pw.Write(items); err != nil {
		_ = pw.Close()
		return err
	}
	if err := pw.Close(); err != nil {
		return err
	}

	return checkCtx(ctx)
}
