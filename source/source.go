package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidURI is returned by Open for locations it cannot parse.
var ErrInvalidURI = errors.New("invalid input uri")

// Envelope is one raw input item.
//
// No schema is imposed on Payload; it is the transformer's responsibility to
// validate and convert it into a typed request.
type Envelope struct {
	// Index is the 0-based position of the item in its input.
	Index   int
	Payload json.RawMessage
}

// S3API is the subset of the S3 client used to read s3:// inputs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Open reads every item from uri: "-" for stdin, s3://bucket/key or a local
// path. client may be nil unless uri is an S3 location.
func Open(ctx context.Context, uri string, client S3API) ([]Envelope, error) {
	rc, err := openReader(ctx, uri, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	envs, err := Read(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return envs, nil
}

func openReader(ctx context.Context, uri string, client S3API) (io.ReadCloser, error) {
	switch {
	case uri == "":
		return nil, fmt.Errorf("%w: empty", ErrInvalidURI)

	case uri == "-":
		return io.NopCloser(os.Stdin), nil

	case strings.HasPrefix(uri, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
		if bucket == "" || !ok || key == "" {
			return nil, fmt.Errorf("%w: %q: want s3://bucket/key", ErrInvalidURI, uri)
		}
		if client == nil {
			return nil, fmt.Errorf("s3 client is required for %q", uri)
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
		if err != nil {
			return nil, fmt.Errorf("get s3 object %q: %w", uri, err)
		}
		return out.Body, nil

	default:
		f, err := os.Open(strings.TrimPrefix(uri, "file://"))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// Read parses r as either a JSON array or a stream of JSON values (JSON
// Lines or concatenated documents). The format is chosen by the first
// non-space byte.
func Read(r io.Reader) ([]Envelope, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []Envelope{}, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		return readArray(dec)
	}
	return readStream(dec)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	// skip a UTF-8 BOM
	if p, _ := br.Peek(3); bytes.Equal(p, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	for {
		p, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch p[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.Discard(1)
			continue
		}
		return p[0], nil
	}
}

func readArray(dec *json.Decoder) ([]Envelope, error) {
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	envs := []Envelope{}
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("item %d: %w", len(envs), err)
		}
		envs = append(envs, Envelope{Index: len(envs), Payload: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON array")
	}
	return envs, nil
}

func readStream(dec *json.Decoder) ([]Envelope, error) {
	envs := []Envelope{}
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return envs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", len(envs), err)
		}
		envs = append(envs, Envelope{Index: len(envs), Payload: raw})
	}
}
