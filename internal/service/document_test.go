package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/model"
	repoMocks "github.com/Jagadeesh-777/patient-docs-portal/internal/repository/mocks"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/storage"
	storeMocks "github.com/Jagadeesh-777/patient-docs-portal/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		originalName string
		mediaType    string
		size         int64
		setupMocks   func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader
		wantErr      error
		checkDoc     func(t *testing.T, doc *model.Document)
	}{
		{
			name:         "happy path",
			originalName: "report.pdf",
			mediaType:    "application/pdf",
			size:         11,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello world")
				mStore.On("Put", ctx, r, ".pdf").
					Return(storage.PutResult{Key: "gen-key.pdf", Size: 11}, nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.Filename == "report.pdf" &&
						doc.Filepath == "gen-key.pdf" &&
						doc.Size == 11 &&
						!doc.CreatedAt.IsZero()
				})).Return(&model.Document{
					ID:        1,
					Filename:  "report.pdf",
					Filepath:  "gen-key.pdf",
					Size:      11,
					CreatedAt: time.Now().UTC(),
				}, nil)
				return r
			},
			checkDoc: func(t *testing.T, doc *model.Document) {
				assert.Equal(t, int64(1), doc.ID)
				assert.Equal(t, "report.pdf", doc.Filename)
				assert.Equal(t, int64(11), doc.Size)
			},
		},
		{
			name:         "media type with parameters is accepted",
			originalName: "scan.pdf",
			mediaType:    "application/pdf; name=scan.pdf",
			size:         5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, r, ".pdf").
					Return(storage.PutResult{Key: "gen-key.pdf", Size: 5}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(&model.Document{ID: 2}, nil)
				return r
			},
		},
		{
			name:         "validation error - nil reader",
			originalName: "report.pdf",
			mediaType:    "application/pdf",
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return nil
			},
			wantErr: ErrReaderNil,
		},
		{
			name:         "rejects non-pdf media type before any write",
			originalName: "notes.txt",
			mediaType:    "text/plain",
			size:         5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return strings.NewReader("hello")
			},
			wantErr: ErrInvalidMediaType,
		},
		{
			name:         "rejects oversize payload before any write",
			originalName: "big.pdf",
			mediaType:    "application/pdf",
			size:         11 << 20,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				return strings.NewReader("pretend this is big")
			},
			wantErr: ErrPayloadTooLarge,
		},
		{
			name:         "storage failure - no metadata row created",
			originalName: "report.pdf",
			mediaType:    "application/pdf",
			size:         5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, r, ".pdf").
					Return(storage.PutResult{}, errors.New("disk full"))
				return r
			},
			wantErr: ErrIOFailure,
		},
		{
			name:         "metadata failure leaves the blob as an orphan",
			originalName: "report.pdf",
			mediaType:    "application/pdf",
			size:         5,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, r, ".pdf").
					Return(storage.PutResult{Key: "orphan-key.pdf", Size: 5}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				return r
			},
			wantErr: ErrMetadataWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, DefaultMaxUploadBytes)

			r := tt.setupMocks(mStore, mRepo)

			doc, err := svc.Upload(ctx, r, tt.originalName, tt.mediaType, tt.size)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, doc)
				if tt.checkDoc != nil {
					tt.checkDoc(t, doc)
				}
			}

			// No compensating delete exists on any path.
			mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_UploadOrphanLogging(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	orig := orphanLog
	orphanLog = log.New(&buf, "", 0)
	t.Cleanup(func() { orphanLog = orig })

	flagsBefore := log.Flags()

	mStore := new(storeMocks.MockBlobStore)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, 0)

	r := strings.NewReader("hello")
	mStore.On("Put", ctx, r, ".pdf").
		Return(storage.PutResult{Key: "orphan-key.pdf", Size: 5}, nil)
	mRepo.On("Create", ctx, mock.Anything).
		Return(nil, errors.New("db fail"))

	_, err := svc.Upload(ctx, r, "report.pdf", "application/pdf", 5)
	assert.ErrorIs(t, err, ErrMetadataWrite)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "orphan_blob", entry["event"])
	assert.Equal(t, "orphan-key.pdf", entry["storage_key"])
	assert.Equal(t, "report.pdf", entry["original_name"])

	// The standard logger's configuration is not a side channel.
	assert.Equal(t, flagsBefore, log.Flags())
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := NewDocumentService(nil, mRepo, 0)

		mRepo.On("List", ctx).Return([]model.Document{{ID: 2}, {ID: 1}}, nil)

		docs, err := svc.List(ctx)

		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Equal(t, int64(2), docs[0].ID)
		mRepo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		svc := NewDocumentService(nil, mRepo, 0)

		mRepo.On("List", ctx).Return(nil, errors.New("db fail"))

		docs, err := svc.List(ctx)

		assert.ErrorIs(t, err, ErrMetadataRead)
		assert.Nil(t, docs)
		mRepo.AssertExpectations(t)
	})
}

func TestDocumentService_Fetch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantBody   string
	}{
		{
			name: "happy path",
			id:   7,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(7)).Return(&model.Document{
					ID: 7, Filename: "report.pdf", Filepath: "key.pdf", Size: 9,
				}, nil)
				mStore.On("Get", ctx, "key.pdf").
					Return(io.NopCloser(strings.NewReader("pdf bytes")), int64(9), nil)
			},
			wantBody: "pdf bytes",
		},
		{
			name: "not found",
			id:   404,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(404)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "metadata row exists but blob is gone",
			id:   8,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(8)).Return(&model.Document{
					ID: 8, Filepath: "gone.pdf",
				}, nil)
				mStore.On("Get", ctx, "gone.pdf").
					Return(nil, int64(0), storage.ErrNotExist)
			},
			wantErr: ErrBlobMissing,
		},
		{
			name: "storage read failure",
			id:   9,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(9)).Return(&model.Document{
					ID: 9, Filepath: "key.pdf",
				}, nil)
				mStore.On("Get", ctx, "key.pdf").
					Return(nil, int64(0), errors.New("permission denied"))
			},
			wantErr: ErrIOFailure,
		},
		{
			name: "metadata read failure",
			id:   10,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(10)).Return(nil, errors.New("db fail"))
			},
			wantErr: ErrMetadataRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, 0)

			tt.setupMocks(mStore, mRepo)

			rc, doc, err := svc.Fetch(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rc)
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, doc)
				body, readErr := io.ReadAll(rc)
				assert.NoError(t, readErr)
				assert.Equal(t, tt.wantBody, string(body))
				assert.NoError(t, rc.Close())
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(1)).Return(&model.Document{ID: 1, Filepath: "key.pdf"}, nil)
				mStore.On("Delete", ctx, "key.pdf").Return(nil)
				mRepo.On("Delete", ctx, int64(1)).Return(nil)
			},
		},
		{
			name: "not found",
			id:   404,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(404)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "storage failure aborts before metadata is touched",
			id:   2,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(2)).Return(&model.Document{ID: 2, Filepath: "key.pdf"}, nil)
				mStore.On("Delete", ctx, "key.pdf").Return(errors.New("permission denied"))
			},
			wantErr: ErrIOFailure,
		},
		{
			name: "metadata delete failure",
			id:   3,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(3)).Return(&model.Document{ID: 3, Filepath: "key.pdf"}, nil)
				mStore.On("Delete", ctx, "key.pdf").Return(nil)
				mRepo.On("Delete", ctx, int64(3)).Return(errors.New("db fail"))
			},
			wantErr: ErrMetadataWrite,
		},
		{
			name: "row gone between lookup and delete reads as not found",
			id:   4,
			setupMocks: func(mStore *storeMocks.MockBlobStore, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(4)).Return(&model.Document{ID: 4, Filepath: "key.pdf"}, nil)
				mStore.On("Delete", ctx, "key.pdf").Return(nil)
				mRepo.On("Delete", ctx, int64(4)).Return(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockBlobStore)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := NewDocumentService(mStore, mRepo, 0)

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}
