package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/model"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/repository"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/storage"
)

// DefaultMaxUploadBytes is the upload ceiling applied when the configured
// limit is zero or negative.
const DefaultMaxUploadBytes = 10 << 20

const mediaTypePDF = "application/pdf"

// Closed error set for document operations. Handlers map these to HTTP codes
// with errors.Is; nothing outside this set escapes the service undistinguished.
var (
	ErrReaderNil        = errors.New("reader is nil")
	ErrInvalidMediaType = errors.New("media type must be application/pdf")
	ErrPayloadTooLarge  = errors.New("file exceeds upload size limit")
	ErrIOFailure        = errors.New("blob storage failure")
	ErrMetadataWrite    = errors.New("metadata write failure")
	ErrMetadataRead     = errors.New("metadata read failure")
	ErrNotFound         = errors.New("document not found")
	ErrBlobMissing      = errors.New("stored file is missing")
)

// DocumentService defines the use cases for handling documents.
//
// Consistency contract: the blob write completes (and is durable) before the
// metadata row becomes visible, and the metadata row is the single source of
// truth for existence. There is no state between calls beyond the two stores.
type DocumentService interface {
	// Upload validates the declared media type and size, writes the bytes to
	// blob storage under a generated key, then inserts the metadata row.
	// If the metadata insert fails the blob is left behind as an orphan and
	// its key is logged; no compensating delete is attempted.
	Upload(ctx context.Context, r io.Reader, originalName string, mediaType string, size int64) (*model.Document, error)

	// List returns all documents, most recent first.
	List(ctx context.Context) ([]model.Document, error)

	// Fetch returns the document's content stream together with its metadata.
	// A metadata row whose blob is gone yields ErrBlobMissing, distinct from
	// ErrNotFound, so callers can tell "never existed" from "corrupted".
	Fetch(ctx context.Context, id int64) (io.ReadCloser, *model.Document, error)

	// Delete removes the blob (missing blobs are fine), then the metadata row.
	Delete(ctx context.Context, id int64) error
}

type documentService struct {
	store          storage.BlobStore
	repo           repository.DocumentRepository
	maxUploadBytes int64
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.BlobStore, repo repository.DocumentRepository, maxUploadBytes int64) DocumentService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &documentService{store: store, repo: repo, maxUploadBytes: maxUploadBytes}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalName string, mediaType string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}

	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil || mt != mediaTypePDF {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMediaType, mediaType)
	}
	// Reject before any bytes reach the store.
	if size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, s.maxUploadBytes)
	}

	res, err := s.store.Put(ctx, r, filepath.Ext(originalName))
	if err != nil {
		return nil, fmt.Errorf("%w: put: %v", ErrIOFailure, err)
	}

	doc := &model.Document{
		Filename:  originalName,
		Filepath:  res.Key,
		Size:      res.Size,
		CreatedAt: time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// The blob is now unreferenced and unreachable via the API. Leave it
		// for manual or background reconciliation; log the key so it can be found.
		logOrphan(res.Key, originalName, err)
		return nil, fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}
	return stored, nil
}

func (s *documentService) List(ctx context.Context) ([]model.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataRead, err)
	}
	return docs, nil
}

func (s *documentService) Fetch(ctx context.Context, id int64) (io.ReadCloser, *model.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrMetadataRead, err)
	}

	rc, _, err := s.store.Get(ctx, doc.Filepath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: key %s", ErrBlobMissing, doc.Filepath)
		}
		return nil, nil, fmt.Errorf("%w: get: %v", ErrIOFailure, err)
	}
	return rc, doc, nil
}

func (s *documentService) Delete(ctx context.Context, id int64) error {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrMetadataRead, err)
	}

	// An already-absent blob is success here; a real storage failure aborts
	// before the row is touched, leaving both stores intact and consistent.
	if err := s.store.Delete(ctx, doc.Filepath); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrIOFailure, err)
	}

	// Removing the row is what makes the document gone to readers.
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrMetadataWrite, err)
	}
	return nil
}

// orphanLog writes bare JSON lines; the global logger's flags stay untouched.
var orphanLog = log.New(os.Stdout, "", 0)

func logOrphan(key, originalName string, cause error) {
	entry := map[string]any{
		"ts":            time.Now().UTC().Format(time.RFC3339Nano),
		"level":         "error",
		"component":     "service",
		"event":         "orphan_blob",
		"storage_key":   key,
		"original_name": originalName,
		"error_message": cause.Error(),
	}
	if b, err := json.Marshal(entry); err == nil {
		orphanLog.Println(string(b))
	}
}
