// Package bucket manages per-project object namespaces.
package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Bucket is a named, visibility-flagged namespace of objects owned by
// exactly one project. Names are unique within a project, not globally.
type Bucket struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	IsPublic  bool      `json:"isPublic"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a bucket does not exist.
var ErrNotFound = errors.New("bucket not found")

// ErrAlreadyExists is returned when the bucket name is taken within the project.
var ErrAlreadyExists = errors.New("bucket already exists")

// Repository defines bucket persistence operations.
type Repository interface {
	Create(ctx context.Context, projectID, name string, isPublic bool) (*Bucket, error)
	GetByName(ctx context.Context, projectID, name string) (*Bucket, error)
	ListByProject(ctx context.Context, projectID string) ([]*Bucket, error)
	Delete(ctx context.Context, id string) error
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new bucket. Visibility is fixed at creation.
func (r *PostgresRepository) Create(ctx context.Context, projectID, name string, isPublic bool) (*Bucket, error) {
	b := &Bucket{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO buckets (project_id, name, is_public)
		 VALUES ($1, $2, $3)
		 RETURNING id, project_id, name, is_public, created_at`,
		projectID, name, isPublic,
	).Scan(&b.ID, &b.ProjectID, &b.Name, &b.IsPublic, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return b, nil
}

// GetByName fetches a bucket scoped to its owning project.
func (r *PostgresRepository) GetByName(ctx context.Context, projectID, name string) (*Bucket, error) {
	b := &Bucket{}
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, name, is_public, created_at
		 FROM buckets WHERE project_id = $1 AND name = $2`,
		projectID, name,
	).Scan(&b.ID, &b.ProjectID, &b.Name, &b.IsPublic, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket by name: %w", err)
	}
	return b, nil
}

// ListByProject returns all buckets owned by the project.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*Bucket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, name, is_public, created_at
		 FROM buckets WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*Bucket
	for rows.Next() {
		b := &Bucket{}
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.IsPublic, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// Delete removes a bucket; its objects cascade at the database level.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM buckets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
