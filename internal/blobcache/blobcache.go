// Package blobcache is a write-once, content-addressed store for binary
// payloads that arrive inline (base64) in messages. Segments keep a short
// reference to the stored object instead of the payload itself.
package blobcache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Kind selects the subdirectory (or key prefix) a blob is stored under
type Kind string

const (
	Images  Kind = "images"
	Records Kind = "records"
	Videos  Kind = "videos"
)

// Valid reports whether k is one of the cache subdirectories
func (k Kind) Valid() bool {
	return k == Images || k == Records || k == Videos
}

// Store persists blobs by content hash
type Store interface {
	// Put stores data under kind and returns a reference URI. Storing the
	// same bytes twice returns the same reference and leaves the object as is.
	Put(ctx context.Context, kind Kind, data []byte) (string, error)
	// Get reads back the object behind a reference returned by Put.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Exists reports whether an object with this hash is stored under kind.
	Exists(ctx context.Context, kind Kind, hash string) (bool, error)
}

// Hash is the hex BLAKE2b-256 digest used as object name
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// objectKey joins prefix, kind and hash with forward slashes
func objectKey(prefix string, kind Kind, hash string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + string(kind) + "/" + hash
}

func checkKind(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown blob kind %q", kind)
	}
	return nil
}

type ctxKey struct{}

// WithStore attaches store to ctx for codecs that cache binary segments
func WithStore(ctx context.Context, store Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, store)
}

// FromContext returns the store attached to ctx, or the process default
func FromContext(ctx context.Context) (Store, error) {
	if store, ok := ctx.Value(ctxKey{}).(Store); ok && store != nil {
		return store, nil
	}
	return Default()
}

var (
	defaultOnce  sync.Once
	defaultStore Store
	defaultErr   error
)

// Default is a filesystem store under the user cache directory
func Default() (Store, error) {
	defaultOnce.Do(func() {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		defaultStore, defaultErr = NewFSStore(filepath.Join(dir, "chat-recorder"))
	})
	return defaultStore, defaultErr
}
