// Package blob defines the content-addressed store for uploaded binary
// assets. Blobs are immutable and keyed by the SHA-256 digest of their
// bytes, so writing the same bytes twice is a no-op and distinct uploads
// never collide.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrBlobNotFound indicates no blob is stored under the requested key.
var ErrBlobNotFound = errors.New("blob not found")

// Store is the interface implemented by blob storage backends.
//
// Put must be safe under concurrent calls with identical bytes: the
// second writer detects the existing key and skips the write instead of
// overwriting. There is no delete; assets are immutable and reclaimed
// externally if at all.
type Store interface {
	// Put writes data under its digest-derived key and returns that key.
	// Re-putting identical bytes returns the same key without a second
	// physical write. The ext suffix (".png") is carried into the key so
	// the public locator keeps the original file type.
	Put(ctx context.Context, data []byte, ext string) (string, error)

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Open returns the blob's bytes for reading. ErrBlobNotFound when
	// the key is absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns the stable public locator for key. Deterministic, no
	// I/O, and valid whether or not the blob exists yet.
	URL(key string) string
}

// Digest returns the lowercase hex SHA-256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyFor builds the sharded storage key for a digest: the first two hex
// characters form the directory shard, the full digest plus the original
// file extension the name.
func KeyFor(digest, ext string) string {
	return digest[:2] + "/" + digest + ext
}

// StoreError wraps a backend failure with the backend name, key and
// operation, mirroring how repository errors are reported.
type StoreError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("blob operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
