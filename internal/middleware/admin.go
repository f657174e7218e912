package middleware

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cargohold/service/internal/response"
)

// AdminIDKey is the context key for the authenticated administrator's ID.
const AdminIDKey contextKey = "adminID"

// AdminID returns the authenticated admin user id from the request context.
func AdminID(ctx context.Context) string {
	id, _ := ctx.Value(AdminIDKey).(string)
	return id
}

// RequireAdmin returns middleware that validates a Bearer JWT issued by the
// admin login endpoint and injects the admin id into the request context.
func RequireAdmin(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				response.Unauthorized(w)
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				response.Unauthorized(w)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w)
				return
			}
			if role, _ := claims["role"].(string); role != "admin" {
				response.Unauthorized(w)
				return
			}

			adminID, _ := claims["sub"].(string)
			ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
