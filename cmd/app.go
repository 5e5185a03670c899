package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/blobcache"
	"github.com/iksnae/chat-recorder/internal/config"
	"github.com/iksnae/chat-recorder/internal/ingest"
	"github.com/iksnae/chat-recorder/internal/record"
	"github.com/iksnae/chat-recorder/internal/session"
)

// app holds the stores every command works against
type app struct {
	db       *internal.DB
	sessions session.Store
	records  *record.Store
	blobs    blobcache.Store
	redis    *redis.Client
}

// openApp opens the database, migrates both tables and wires the optional
// redis session cache and the blob store
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	db, err := internal.OpenDatabase(c.Database.Driver, c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{db: db}

	sqlSessions, err := session.NewSQLStore(ctx, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = sqlSessions

	if c.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		cached := session.NewCachedStore(sqlSessions, a.redis, c.Redis.Prefix, c.Redis.TTL)
		internal.LogDebug("using %s", cached)
		a.sessions = cached
	}

	a.records, err = record.NewStore(ctx, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// blobStore opens the configured blob store on first use
func (a *app) blobStore(ctx context.Context, c *config.Config) (blobcache.Store, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	store, err := blobcache.Open(ctx, c.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob cache: %w", err)
	}
	a.blobs = store
	return store, nil
}

// recorder builds an ingestion recorder over the app's stores
func (a *app) recorder(ctx context.Context, c *config.Config, opts ...ingest.Option) (*ingest.Recorder, error) {
	blobs, err := a.blobStore(ctx, c)
	if err != nil {
		return nil, err
	}
	opts = append([]ingest.Option{
		ingest.WithBlobStore(blobs),
		ingest.WithRecordSent(c.RecordSendMsg),
	}, opts...)
	return ingest.New(a.sessions, a.records, opts...), nil
}

func (a *app) Close() {
	if closer, ok := a.blobs.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			internal.LogWarn("Failed to close blob cache: %v", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		internal.LogWarn("Failed to close database: %v", err)
	}
}
