package blobcache

import (
	"context"
	"fmt"
)

// Backend names a Store implementation
type Backend string

const (
	BackendFS  Backend = "fs"
	BackendS3  Backend = "s3"
	BackendGCS Backend = "gcs"
)

// Config selects and configures a backend
type Config struct {
	Backend  Backend `yaml:"backend"`
	Dir      string  `yaml:"dir"`
	Bucket   string  `yaml:"bucket"`
	Prefix   string  `yaml:"prefix"`
	Region   string  `yaml:"region"`
	Endpoint string  `yaml:"endpoint"`
}

// Open builds the configured store; an empty backend means fs
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFS:
		if cfg.Dir == "" {
			return Default()
		}
		return NewFSStore(cfg.Dir)
	case BackendS3:
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3Config{Bucket: cfg.Bucket, Region: region, Endpoint: cfg.Endpoint, Prefix: cfg.Prefix})
	case BackendGCS:
		return NewGCSStore(ctx, GCSConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix, Endpoint: cfg.Endpoint})
	default:
		return nil, fmt.Errorf("unsupported blob cache backend: %s (supported: fs, s3, gcs)", cfg.Backend)
	}
}
