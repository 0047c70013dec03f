package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type WriteRequest struct {
	Key         string
	Data        []byte
	ContentType string
}

// StreamWriter represents something that can write its contents to a destination writer.
// This avoids allocating function closures in hot paths.
type StreamWriter interface {
	WriteTo(w io.Writer) error
}

type StreamWriteRequest struct {
	Key         string
	ContentType string
	// Writer streams directly to the destination.
	// Implementations must return when done writing.
	Writer StreamWriter
}

type Sinkr interface {
	Write(ctx context.Context, req WriteRequest) error
}

// StreamSinkr is an optional interface implemented by sinks that can stream data directly
// to the destination without buffering the full payload in memory.
type StreamSinkr interface {
	WriteStream(ctx context.Context, req StreamWriteRequest) error
}

// Destination is a resolved output location: a sink plus the key to write
// under it.
type Destination struct {
	Sink Sinkr
	Key  string
}

// Open resolves uri into a Destination. "-" and "" mean stdout, s3://bucket/key
// an S3 object and anything else a local file path. client may be nil unless
// uri is an S3 location.
func Open(uri string, client S3API) (Destination, error) {
	switch {
	case uri == "" || uri == "-":
		return Destination{Sink: NewWriter(os.Stdout), Key: "-"}, nil

	case strings.HasPrefix(uri, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
		if bucket == "" || !ok || strings.Trim(key, "/") == "" {
			return Destination{}, fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", uri)
		}
		if client == nil {
			return Destination{}, fmt.Errorf("s3 client is required for %q", uri)
		}
		return Destination{Sink: NewS3(client, bucket, ""), Key: key}, nil

	default:
		dir, file := filepath.Split(uri)
		if file == "" {
			return Destination{}, fmt.Errorf("invalid output path %q: missing file name", uri)
		}
		return Destination{Sink: NewFile(dir), Key: file}, nil
	}
}

// String renders the destination back as a uri for logging.
func (d Destination) String() string {
	switch s := d.Sink.(type) {
	case *S3:
		return "s3://" + s.bucket + "/" + s.objectKey(d.Key)
	case *File:
		return filepath.Join(s.dir, d.Key)
	default:
		return d.Key
	}
}
