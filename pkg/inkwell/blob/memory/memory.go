// Package memory provides an in-memory blob store for tests and
// single-process development servers.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/inkwell-cms/inkwell/pkg/inkwell/blob"
)

// Store is an in-memory implementation of blob.Store.
type Store struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	urlPrefix string
	writes    int
}

// New creates an in-memory blob store serving URLs under /media/blobs.
func New() *Store {
	return NewWithURLPrefix("/media/blobs")
}

// NewWithURLPrefix creates an in-memory blob store with a custom public
// URL prefix.
func NewWithURLPrefix(urlPrefix string) *Store {
	return &Store{
		blobs:     make(map[string][]byte),
		urlPrefix: urlPrefix,
	}
}

func (s *Store) Put(ctx context.Context, data []byte, ext string) (string, error) {
	key := blob.KeyFor(blob.Digest(data), ext)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[key]; exists {
		return key, nil
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored
	s.writes++

	return key, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blobs[key]
	return exists, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.blobs[key]
	if !exists {
		return nil, &blob.StoreError{Backend: "memory", Key: key, Op: "open", Err: blob.ErrBlobNotFound}
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) URL(key string) string {
	return s.urlPrefix + "/" + key
}

// Writes returns the number of physical writes performed. Used by tests
// to assert put idempotence.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
