package blobcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSAPI is the subset of bucket operations the store uses. CreateIfAbsent
// must fail with a 412 googleapi.Error when the object already exists.
type GCSAPI interface {
	Exists(ctx context.Context, name string) (bool, error)
	CreateIfAbsent(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
}

// GCSConfig holds configuration for GCSStore
type GCSConfig struct {
	Bucket string
	Prefix string
	// Endpoint points the client at an emulator; credentials are skipped then.
	Endpoint string
}

// GCSStore keeps blobs in a Cloud Storage bucket under <prefix>/<kind>/<hash>
type GCSStore struct {
	api    GCSAPI
	closer io.Closer
	bucket string
	prefix string
}

// NewGCSStore creates a client using application default credentials
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs blob cache requires a bucket")
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	s := NewGCSStoreWithClient(gcsBucket{client.Bucket(cfg.Bucket)}, cfg.Bucket, cfg.Prefix)
	s.closer = client
	return s, nil
}

// NewGCSStoreWithClient wraps an existing bucket client
func NewGCSStoreWithClient(api GCSAPI, bucket, prefix string) *GCSStore {
	return &GCSStore{api: api, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Put(ctx context.Context, kind Kind, data []byte) (string, error) {
	if err := checkKind(kind); err != nil {
		return "", err
	}
	name := objectKey(s.prefix, kind, Hash(data))
	ref := "gs://" + s.bucket + "/" + name

	exists, err := s.api.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("gcs attrs error: %w", err)
	}
	if exists {
		return ref, nil
	}
	if err := s.api.CreateIfAbsent(ctx, name, data); err != nil {
		if isPreconditionFailed(err) {
			return ref, nil
		}
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	return ref, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, name, ok := strings.Cut(strings.TrimPrefix(ref, "gs://"), "/")
	if !strings.HasPrefix(ref, "gs://") || !ok || bucket != s.bucket {
		return nil, fmt.Errorf("not a reference into gs://%s: %s", s.bucket, ref)
	}
	data, err := s.api.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("gcs get failed for %s: %w", ref, err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, kind Kind, hash string) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	exists, err := s.api.Exists(ctx, objectKey(s.prefix, kind, hash))
	if err != nil {
		return false, fmt.Errorf("gcs attrs error: %w", err)
	}
	return exists, nil
}

// Close releases the client
func (s *GCSStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// isPreconditionFailed recognises the write-once condition losing to a concurrent writer
func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

// gcsBucket implements GCSAPI over a storage bucket handle
type gcsBucket struct {
	bucket *storage.BucketHandle
}

func (b gcsBucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.bucket.Object(name).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

func (b gcsBucket) CreateIfAbsent(ctx context.Context, name string, data []byte) error {
	w := b.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b gcsBucket) Read(ctx context.Context, name string) ([]byte, error) {
	reader, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}
