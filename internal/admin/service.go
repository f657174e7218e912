package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cargohold/service/internal/config"
)

const sessionTTL = 12 * time.Hour

// ErrInvalidCredentials is returned when the username or password is wrong.
// The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service contains the business logic for administrator sessions and
// analytics.
type Service struct {
	repo Repository
	cfg  *config.Config
}

// NewService creates a new admin Service.
func NewService(repo Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Login verifies the credentials and issues a session JWT.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("look up admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(sessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.AdminJWTSecret))
}

// Stats returns aggregate usage numbers across all tenants.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
