// Package kvstore provides the simple key-value blob store used to persist
// small JSON documents (such as the notification feed) across sessions.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key
var ErrNotFound = errors.New("kvstore: key not found")

// Store reads and writes opaque blobs under string keys
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
