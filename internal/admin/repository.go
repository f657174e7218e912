// Package admin provides the JSON API behind the administrative panel:
// login, project and bucket management, and usage analytics.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is an administrator account. Password hashes never leave this package.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Stats are the aggregate usage numbers shown on the analytics page.
type Stats struct {
	TotalProjects    int64 `json:"totalProjects"`
	TotalBuckets     int64 `json:"totalBuckets"`
	TotalObjects     int64 `json:"totalObjects"`
	TotalStorageUsed int64 `json:"totalStorageUsed"`
}

// ErrNotFound is returned when an admin user does not exist.
var ErrNotFound = errors.New("admin user not found")

// Repository defines admin persistence operations.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	Stats(ctx context.Context) (*Stats, error)
}

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUsername fetches an admin user by name.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new administrator account.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO admin_users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, password_hash, created_at`,
		username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}
	return u, nil
}

// Stats aggregates totals across all tenants.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	err := r.db.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM projects),
		   (SELECT COUNT(*) FROM buckets),
		   (SELECT COUNT(*) FROM objects),
		   (SELECT COALESCE(SUM(size), 0) FROM objects)`,
	).Scan(&s.TotalProjects, &s.TotalBuckets, &s.TotalObjects, &s.TotalStorageUsed)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	return s, nil
}
