package bucket

import (
	"context"
	"errors"
)

// Service contains business logic for bucket management. Visibility is
// fixed at creation: there is no public/private transition, so signed URLs
// issued for a private bucket can never be retroactively voided by a flag
// flip.
type Service struct {
	repo Repository
}

// NewService creates a new bucket Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a bucket to the project. Names are unique per project.
func (s *Service) Create(ctx context.Context, projectID, name string, isPublic bool) (*Bucket, error) {
	return s.repo.Create(ctx, projectID, name, isPublic)
}

// GetByName resolves a bucket scoped to its owning project.
func (s *Service) GetByName(ctx context.Context, projectID, name string) (*Bucket, error) {
	return s.repo.GetByName(ctx, projectID, name)
}

// ListByProject returns all buckets owned by the project.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*Bucket, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// Delete removes a bucket and, by cascade, its objects.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// IsNotFound returns true when the error indicates a bucket was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
