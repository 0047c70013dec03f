package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// File writes each request to dir/key, creating parent directories.
type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	p := filepath.Join(f.dir, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %q: %w", p, err)
	}
	return p, nil
}

func (f *File) Write(ctx context.Context, req WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(req.Key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, req.Data, 0o644); err != nil {
		return fmt.Errorf("write file %q: %w", p, err)
	}
	return nil
}

func (f *File) WriteStream(ctx context.Context, req StreamWriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(req.Key)
	if err != nil {
		return err
	}

	fh, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create file %q: %w", p, err)
	}
	bw := bufio.NewWriter(fh)
	if err := req.Writer.WriteTo(bw); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write file %q: %w", p, err)
	}
	if err := bw.Flush(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write file %q: %w", p, err)
	}
	return fh.Close()
}

// Writer sends every request to a single io.Writer, ignoring keys. Writes are
// serialized.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Write(ctx context.Context, req WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(req.Data)
	return err
}

func (s *Writer) WriteStream(ctx context.Context, req StreamWriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return req.Writer.WriteTo(s.w)
}
