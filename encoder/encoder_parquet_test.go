package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllParquet[T any](t *testing.T, b []byte) []T {
	t.Helper()

	r := parquet.NewGenericReader[T](bytes.NewReader(b))
	defer r.Close()

	const batchSize = 256
	buf := make([]T, batchSize)

	out := make([]T, 0, batchSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return out
}

func TestParquetEncoder_Metadata(t *testing.T) {
	e := ParquetEncoder[testRow]{}
	assert.Equal(t, ".parquet", e.FileExtension())
	assert.Equal(t, "application/vnd.apache.parquet", e.ContentType())
}

func TestParquetEncoder_UnsupportedCompression(t *testing.T) {
	e := ParquetEncoder[testRow]{Compression: "brotli"}
	_, err := e.Encode(context.Background(), []testRow{{ID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brotli")
}

func TestParquetEncoder_ContextCanceledBefore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParquetEncoder[testRow]{}.Encode(ctx, []testRow{{ID: 1}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParquetEncoder_ContextDeadlineExceededBefore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := ParquetEncoder[testRow]{}.Encode(ctx, []testRow{{ID: 1, Name: "late"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParquetEncoder_RoundTrip(t *testing.T) {
	items := []testRow{
		{ID: 1, Name: "a", Value: 1.25},
		{ID: 2, Name: "b", Value: 2.50},
		{ID: 3, Name: "c", Value: 3.75},
	}

	for _, c := range []string{"", "none", "snappy", "gzip", "zstd"} {
		t.Run("compression="+c, func(t *testing.T) {
			data, err := ParquetEncoder[testRow]{Compression: c}.Encode(context.Background(), items)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			got := readAllParquet[testRow](t, data)
			assert.Equal(t, items, got)
		})
	}
}

func makeBenchRows(n int) []testRow {
	items := make([]testRow, n)
	for i := 0; i < n; i++ {
		items[i] = testRow{
			ID:    int64(i),
			Name:  fmt.Sprintf("item-%d", i),
			Value: float64(i) * 1.337,
		}
	}
	return items
}

func benchmarkParquetEncode(b *testing.B, n int, compression string) {
	b.Helper()

	items := makeBenchRows(n)
	enc := ParquetEncoder[testRow]{Compression: compression}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		data, err := enc.Encode(ctx, items)
		require.NoError(b, err)
		_ = data[len(data)-1]
	}
}

func BenchmarkParquetEncoder(b *testing.B) {
	for _, c := range []string{"", "snappy", "gzip", "zstd"} {
		for _, n := range []int{100, 10_000} {
			b.Run(fmt.Sprintf("%s/n=%d", c, n), func(b *testing.B) {
				benchmarkParquetEncode(b, n, c)
			})
		}
	}
}
