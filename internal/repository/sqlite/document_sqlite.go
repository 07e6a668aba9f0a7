package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/model"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/repository"
)

// Timestamps are stored as RFC3339 TEXT with a fixed-width nanosecond
// fraction so that lexicographic and chronological ordering agree. RFC3339Nano
// itself trims trailing fraction zeros, which puts "10:00:00Z" after
// "10:00:00.5Z" in string order. Reads accept either form.
const (
	storeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	parseLayout = time.RFC3339Nano
)

// DocumentSQLite is the SQLite implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentSQLite struct {
	db *sql.DB
}

// NewDocumentSQLite creates a new DocumentSQLite repository.
func NewDocumentSQLite(db *sql.DB) *DocumentSQLite {
	return &DocumentSQLite{db: db}
}

var _ repository.DocumentRepository = (*DocumentSQLite)(nil)

// Create inserts a new document row and returns the stored record with the
// id AUTOINCREMENT assigned. AUTOINCREMENT ids are never reused after deletion.
func (r *DocumentSQLite) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (filename, filepath, filesize, created_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q,
		doc.Filename,
		doc.Filepath,
		doc.Size,
		doc.CreatedAt.UTC().Format(storeLayout),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	out := *doc
	out.ID = id
	out.CreatedAt = doc.CreatedAt.UTC()
	return &out, nil
}

// FindByID fetches a single document by its id.
func (r *DocumentSQLite) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM documents
		WHERE id = ?
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// List returns all documents, most recent first, id descending on ties.
func (r *DocumentSQLite) List(ctx context.Context) ([]model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var (
			d  model.Document
			ts string
		)
		if err := rows.Scan(&d.ID, &d.Filename, &d.Filepath, &d.Size, &ts); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(parseLayout, ts); err != nil {
			return nil, fmt.Errorf("parse created_at for id %d: %w", d.ID, err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document row. Reports sql.ErrNoRows when nothing matched.
func (r *DocumentSQLite) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM documents WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	var (
		d  model.Document
		ts string
	)
	if err := row.Scan(&d.ID, &d.Filename, &d.Filepath, &d.Size, &ts); err != nil {
		return nil, err
	}
	created, err := time.Parse(parseLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for id %d: %w", d.ID, err)
	}
	d.CreatedAt = created
	return &d, nil
}
