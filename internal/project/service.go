package project

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Service contains business logic for project management. It is the key
// store for both API-key authentication and signed-URL secrets.
type Service struct {
	repo Repository
}

// NewService creates a new project Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new project with a freshly generated API key. The key
// is returned once here; listings never echo it again.
func (s *Service) Create(ctx context.Context, name string) (*Project, error) {
	key, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	p, err := s.repo.Create(ctx, name, key)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// ResolveByAPIKey returns the project owning the given API key.
func (s *Service) ResolveByAPIKey(ctx context.Context, apiKey string) (*Project, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByAPIKey(ctx, apiKey)
}

// SecretFor returns the HMAC secret (the API key) for the given project id.
func (s *Service) SecretFor(ctx context.Context, projectID string) (string, error) {
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.APIKey, nil
}

// GetByID returns a project by its UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.repo.List(ctx)
}

// Delete removes a project and, by cascade, all of its buckets and objects.
// Destructive and irreversible.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// IsNotFound returns true when the error indicates a project was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// generateAPIKey produces an opaque "sk-" prefixed random key.
func generateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "sk-" + hex.EncodeToString(buf), nil
}
