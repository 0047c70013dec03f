package encoder

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Encoder converts a slice of typed records into a binary payload.
//
// Implementations must be safe for concurrent use unless documented otherwise.
type Encoder[iType any] interface {
	Encode(ctx context.Context, items []iType) (data []byte, err error)
	FileExtension() string
	ContentType() string
}

// StreamEncoder is an optional interface for encoders that can write directly
// to an io.Writer to avoid buffering the full output in memory.
type StreamEncoder[iType any] interface {
	EncodeTo(ctx context.Context, items []iType, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// Tabular is a record that can be rendered as a row of text cells.
// Columns must return the same headers for every value of a type.
type Tabular interface {
	Columns() []string
	Values() []string
}

// Format names accepted by For.
const (
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatJSONL   = "jsonl"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Formats lists every format For understands.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatParquet}

// For returns the encoder registered under format. Parquet requires iType to
// be a struct with parquet tags and uses snappy compression.
func For[iType Tabular](format string) (Encoder[iType], error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatTable, "":
		return Table[iType]{}, nil
	case FormatJSON:
		return JSON[iType]{Indent: "  "}, nil
	case FormatJSONL:
		return JSONL[iType]{}, nil
	case FormatCSV:
		return CSV[iType]{}, nil
	case FormatParquet:
		return ParquetEncoder[iType]{Compression: "snappy"}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
