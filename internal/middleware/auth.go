package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/cargohold/service/internal/project"
	"github.com/cargohold/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// ProjectIDKey is the context key for the authenticated project's ID.
const ProjectIDKey contextKey = "projectID"

// ProjectResolver resolves a bearer API key to its project.
type ProjectResolver interface {
	ResolveByAPIKey(ctx context.Context, apiKey string) (*project.Project, error)
}

// ProjectID returns the authenticated project id from the request context.
func ProjectID(ctx context.Context) string {
	id, _ := ctx.Value(ProjectIDKey).(string)
	return id
}

// RequireAPIKey returns middleware that validates a Bearer API key and binds
// the owning project id into the request context. Every downstream lookup is
// scoped to that id. All failures produce the same generic 401.
func RequireAPIKey(resolver ProjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r)
			if !ok {
				response.Unauthorized(w)
				return
			}

			p, err := resolver.ResolveByAPIKey(r.Context(), key)
			if err != nil {
				// Detail stays server-side; the client cannot distinguish a
				// missing header from an unknown key.
				log.Printf("auth: rejected api key for %s %s", r.Method, r.URL.Path)
				response.Unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ProjectIDKey, p.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
