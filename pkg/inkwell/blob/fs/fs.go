// Package fs provides a filesystem blob store. Blobs live under
// <base>/<shard>/<digest><ext> and are written once: a second Put of the
// same bytes sees the file and skips the write.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
)

// Config options for the filesystem blob store.
type Config struct {
	BaseDir   string // Base directory for stored blobs
	URLPrefix string // Public URL prefix blobs are served under
}

// Store is a filesystem implementation of blob.Store.
type Store struct {
	baseDir   string
	urlPrefix string
}

// New creates a filesystem blob store rooted at config.BaseDir.
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{
		baseDir:   config.BaseDir,
		urlPrefix: config.URLPrefix,
	}, nil
}

func (s *Store) Put(ctx context.Context, data []byte, ext string) (string, error) {
	key := blob.KeyFor(blob.Digest(data), ext)
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))

	// Write-if-absent: the key is the content digest, so an existing
	// file already holds exactly these bytes.
	if _, err := os.Stat(path); err == nil {
		return key, nil
	} else if !os.IsNotExist(err) {
		return "", &blob.StoreError{Backend: "fs", Key: key, Op: "put", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &blob.StoreError{Backend: "fs", Key: key, Op: "put", Err: err}
	}

	// Write to a unique temp name and rename into place so concurrent
	// writers of the same bytes never observe a partial file.
	tmp := fmt.Sprintf("%s.tmp-%s", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", &blob.StoreError{Backend: "fs", Key: key, Op: "put", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", &blob.StoreError{Backend: "fs", Key: key, Op: "put", Err: err}
	}

	return key, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, &blob.StoreError{Backend: "fs", Key: key, Op: "exists", Err: err}
	}
	return true, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, &blob.StoreError{Backend: "fs", Key: key, Op: "open", Err: blob.ErrBlobNotFound}
	} else if err != nil {
		return nil, &blob.StoreError{Backend: "fs", Key: key, Op: "open", Err: err}
	}
	return file, nil
}

func (s *Store) URL(key string) string {
	return s.urlPrefix + "/" + key
}
