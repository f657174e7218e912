// Package object manages stored objects: index metadata and the byte
// read/write path.
package object

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cargohold/service/internal/object/meta"
)

// Record is the index entry for a stored object. The definition lives in
// the meta subpackage so the access gate can reference it without importing
// this package; the alias keeps object.Record the same type.
type Record = meta.Record

// ErrNotFound is returned when an object does not exist. Cross-tenant
// lookups fail with the same error so callers cannot probe for existence.
var ErrNotFound = meta.ErrNotFound

const recordColumns = `o.id, o.bucket_id, o.filename, o.storage_path, o.mime_type,
	o.size, o.content_hash, o.optimized_at, o.thumbnails, o.created_at,
	b.is_public, b.project_id, b.name`

// Repository defines object index persistence.
type Repository interface {
	// FindScoped resolves (bucket, filename) constrained to the caller's
	// project. Duplicate filenames resolve to the most recent upload.
	FindScoped(ctx context.Context, projectID, bucketName, filename string) (*Record, error)
	// Find resolves (bucket, filename) with no project constraint; used by
	// the public/signed read path, where the bucket's visibility and owning
	// project come back with the record.
	Find(ctx context.Context, bucketName, filename string) (*Record, error)
	// FindByIDScoped resolves an object id constrained to the caller's project.
	FindByIDScoped(ctx context.Context, projectID, id string) (*Record, error)
	// FindByID resolves an object id with no project constraint.
	FindByID(ctx context.Context, id string) (*Record, error)
	// List returns the bucket's objects ordered by creation time, ascending.
	List(ctx context.Context, projectID, bucketName string) ([]*Record, error)
	Insert(ctx context.Context, rec *Record) (string, error)
	Remove(ctx context.Context, id string) error
	// SetOptimization stamps optimization results onto the object row.
	SetOptimization(ctx context.Context, id string, thumbnails json.RawMessage) error
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.ID, &rec.BucketID, &rec.Filename, &rec.StoragePath,
		&rec.MimeType, &rec.Size, &rec.ContentHash, &rec.OptimizedAt,
		&rec.Thumbnails, &rec.CreatedAt, &rec.IsPublic, &rec.ProjectID, &rec.BucketName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan object: %w", err)
	}
	return rec, nil
}

// FindScoped resolves (bucket, filename) within the given project only.
func (r *PostgresRepository) FindScoped(ctx context.Context, projectID, bucketName, filename string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM objects o JOIN buckets b ON o.bucket_id = b.id
		 WHERE b.project_id = $1 AND b.name = $2 AND o.filename = $3
		 ORDER BY o.created_at DESC
		 LIMIT 1`,
		projectID, bucketName, filename)
	return scanRecord(row)
}

// Find resolves (bucket, filename) across all projects.
func (r *PostgresRepository) Find(ctx context.Context, bucketName, filename string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM objects o JOIN buckets b ON o.bucket_id = b.id
		 WHERE b.name = $1 AND o.filename = $2
		 ORDER BY o.created_at DESC
		 LIMIT 1`,
		bucketName, filename)
	return scanRecord(row)
}

// FindByIDScoped resolves an object id within the given project only.
func (r *PostgresRepository) FindByIDScoped(ctx context.Context, projectID, id string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM objects o JOIN buckets b ON o.bucket_id = b.id
		 WHERE o.id = $1 AND b.project_id = $2`,
		id, projectID)
	return scanRecord(row)
}

// FindByID resolves an object id across all projects.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM objects o JOIN buckets b ON o.bucket_id = b.id
		 WHERE o.id = $1`,
		id)
	return scanRecord(row)
}

// List returns the objects in the project's bucket, oldest first.
func (r *PostgresRepository) List(ctx context.Context, projectID, bucketName string) ([]*Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM objects o JOIN buckets b ON o.bucket_id = b.id
		 WHERE b.project_id = $1 AND b.name = $2
		 ORDER BY o.created_at ASC`,
		projectID, bucketName)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Insert persists a new index entry and returns its id.
func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO objects (bucket_id, filename, storage_path, mime_type, size, content_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rec.BucketID, rec.Filename, rec.StoragePath, rec.MimeType, rec.Size, rec.ContentHash,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert object: %w", err)
	}
	return id, nil
}

// Remove deletes the index entry.
func (r *PostgresRepository) Remove(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOptimization stamps optimized_at and the thumbnail manifest.
func (r *PostgresRepository) SetOptimization(ctx context.Context, id string, thumbnails json.RawMessage) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE objects SET optimized_at = NOW(), thumbnails = $2 WHERE id = $1`,
		id, thumbnails)
	if err != nil {
		return fmt.Errorf("set optimization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
