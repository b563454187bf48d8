package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const contentTypeJSON = "application/json"

// Sink stores an encoded export and reports where it went.
type Sink interface {
	Name() string
	Write(ctx context.Context, name string, body []byte) (string, error)
}

// FileSink writes exports into a local directory.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("export directory is required")
	}
	return &FileSink{Dir: dir}, nil
}

func (s *FileSink) Name() string { return "file" }

// Write goes through a temp file and a rename so readers never see a partial export.
func (s *FileSink) Write(ctx context.Context, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	dst := filepath.Join(s.Dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("publish export: %w", err)
	}
	return dst, nil
}

// Uploader is the object storage surface GCSSink needs.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, contentType string) (string, error)
	PublicURL(key string) string
}

type GCSSink struct {
	bucket Uploader
}

func NewGCSSink(bucket Uploader) *GCSSink {
	return &GCSSink{bucket: bucket}
}

func (s *GCSSink) Name() string { return "gcs" }

func (s *GCSSink) Write(ctx context.Context, name string, body []byte) (string, error) {
	if s == nil || s.bucket == nil {
		return "", errors.New("gcs export sink not configured")
	}
	key, err := s.bucket.Upload(ctx, name, bytes.NewReader(body), contentTypeJSON)
	if err != nil {
		return "", err
	}
	return s.bucket.PublicURL(key), nil
}
