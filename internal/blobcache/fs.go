package blobcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore keeps blobs in <dir>/<kind>/<hash>
type FSStore struct {
	dir string
}

// NewFSStore creates the cache directory tree under dir
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}
	for _, kind := range []Kind{Images, Records, Videos} {
		if err := os.MkdirAll(filepath.Join(abs, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to ensure cache dir: %w", err)
		}
	}
	return &FSStore{dir: abs}, nil
}

// Dir is the absolute cache root
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) path(kind Kind, hash string) string {
	return filepath.Join(s.dir, string(kind), hash)
}

// Put writes data through a uniquely named temp file and a rename, so
// concurrent writers of the same content never observe a partial object.
func (s *FSStore) Put(ctx context.Context, kind Kind, data []byte) (string, error) {
	if err := checkKind(kind); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash := Hash(data)
	path := s.path(kind, hash)
	ref := fileURI(path)

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	tmpPath := filepath.Join(filepath.Dir(path), "."+hash+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		// Lost the race to an identical writer.
		if _, statErr := os.Stat(path); statErr == nil {
			return ref, nil
		}
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return ref, nil
}

// Get reads a file:// reference inside the cache root
func (s *FSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("not a file reference: %s", ref)
	}
	path := filepath.FromSlash(u.Path)
	if !strings.HasPrefix(path, s.dir+string(filepath.Separator)) {
		return nil, fmt.Errorf("reference outside cache dir: %s", ref)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob not found: %s", ref)
	}
	return data, err
}

func (s *FSStore) Exists(ctx context.Context, kind Kind, hash string) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(kind, hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
