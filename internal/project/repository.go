// Package project manages tenant projects and their API keys.
package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Project represents a tenant. The API key doubles as the HMAC secret for
// signed URLs, so it is never included in list responses.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("project not found")

// Repository defines project persistence operations.
type Repository interface {
	Create(ctx context.Context, name, apiKey string) (*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
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

// Create inserts a new project and returns the created record.
func (r *PostgresRepository) Create(ctx context.Context, name, apiKey string) (*Project, error) {
	p := &Project{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO projects (name, api_key)
		 VALUES ($1, $2)
		 RETURNING id, name, api_key, created_at`,
		name, apiKey,
	).Scan(&p.ID, &p.Name, &p.APIKey, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetByID fetches a project by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, api_key, created_at FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.APIKey, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return p, nil
}

// GetByAPIKey fetches a project by its API key. The match is exact and
// case-sensitive.
func (r *PostgresRepository) GetByAPIKey(ctx context.Context, apiKey string) (*Project, error) {
	p := &Project{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, api_key, created_at FROM projects WHERE api_key = $1`,
		apiKey,
	).Scan(&p.ID, &p.Name, &p.APIKey, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by api key: %w", err)
	}
	return p, nil
}

// List returns all projects, newest last.
func (r *PostgresRepository) List(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, api_key, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.APIKey, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Delete removes a project; buckets and objects cascade at the database level.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
