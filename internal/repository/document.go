package repository

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (sqlite, postgres) inside this directory.

import (
	"context"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/model"
)

// DocumentRepository defines data access for document metadata rows using SQL
// queries only. No business logic here, strictly persistence operations.
//
// The metadata row is the single source of truth for a document's existence:
// a document is visible exactly while its row exists.
type DocumentRepository interface {
	// Create inserts a new metadata row. The database assigns the id
	// (monotonically increasing, never reused) atomically with row visibility.
	// Returns the stored document including the assigned id.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its id, or sql.ErrNoRows if no row matches.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns all documents ordered by created_at descending, ties broken
	// by id descending.
	List(ctx context.Context) ([]model.Document, error)

	// Delete removes the row for id permanently. Returns sql.ErrNoRows if no
	// row matched.
	Delete(ctx context.Context, id int64) error
}
