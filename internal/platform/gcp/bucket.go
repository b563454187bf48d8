package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/support-assistant/internal/platform/logger"
)

type BucketConfig struct {
	Name          string
	Prefix        string
	Credentials   string
	PublicBaseURL string
	Storage       ObjectStorageConfig
}

// Bucket writes export documents to one GCS bucket (or a fake-gcs emulator).
type Bucket struct {
	log           *logger.Logger
	client        *storage.Client
	name          string
	prefix        string
	mode          ObjectStorageMode
	publicBaseURL string
}

func NewBucket(ctx context.Context, log *logger.Logger, cfg BucketConfig) (*Bucket, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	publicBase, publicSource, err := resolvePublicBaseURL(cfg.PublicBaseURL, cfg.Storage)
	if err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg.Storage, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Bucket{
		log:           log.With("service", "ExportBucket"),
		client:        client,
		name:          strings.TrimSpace(cfg.Name),
		prefix:        strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		mode:          cfg.Storage.Mode,
		publicBaseURL: publicBase,
	}
	b.log.Info("Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", publicSource,
		"bucket", b.name,
		"prefix", b.prefix,
	)
	return b, nil
}

func newStorageClient(ctx context.Context, cfg ObjectStorageConfig, credentials string) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv(credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		// The storage SDK only honours the emulator through this variable.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func resolvePublicBaseURL(raw string, cfg ObjectStorageConfig) (baseURL string, source string, err error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, perr := url.Parse(raw)
		if perr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf("invalid export.gcs.public_base_url=%q; expected absolute URL like http://localhost:4443", raw)
		}
		return strings.TrimRight(raw, "/"), "public_base_url", nil
	}
	if cfg.IsEmulatorMode() {
		return cfg.EmulatorHost, "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

// ObjectKey joins the configured prefix with name.
func (b *Bucket) ObjectKey(name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Upload writes r under the prefixed key and returns the full object key.
func (b *Bucket) Upload(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	key := b.ObjectKey(name)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer %q: %w", key, err)
	}
	return key, nil
}

// Download reads a full object key. The reader owns its context; closing it releases it.
func (b *Bucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := b.client.Bucket(b.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open gcs reader %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (b *Bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs objects: %w", err)
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := b.client.Bucket(b.name).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete gcs object %q in bucket %q: %w", key, b.name, err)
	}
	return nil
}

func (b *Bucket) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.mode == ObjectStorageModeGCSEmulator && b.publicBaseURL != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", b.publicBaseURL, url.PathEscape(b.name), url.PathEscape(key))
	}
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key)
}

func (b *Bucket) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
