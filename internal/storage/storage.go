package storage

// Package storage contains the blob storage abstraction used by the document
// service. The store holds raw bytes under generated keys; it is content-agnostic
// and knows nothing about metadata rows.

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get when no blob is stored under the given key.
var ErrNotExist = errors.New("blob does not exist")

// PutResult describes one persisted blob.
type PutResult struct {
	Key  string
	Size int64
}

// BlobStore is the byte storage abstraction. Implementations generate a fresh
// collision-resistant key on every Put; keys are never reused.
//
// Delete is idempotent: removing a key that is already absent is not an error,
// since a prior partial failure may have removed the blob first.
type BlobStore interface {
	// Put stores the reader's bytes under a freshly generated key, preserving
	// the suggested extension (".pdf" and the like) on the key.
	Put(ctx context.Context, r io.Reader, suggestedExt string) (PutResult, error)

	// Get returns the blob content as a streaming reader alongside its byte
	// length. Returns ErrNotExist when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes the blob under key. Missing blobs are ignored.
	Delete(ctx context.Context, key string) error
}
