package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/carebook/carebook-api/internal/pkg/jwt"
	"github.com/carebook/carebook-api/internal/pkg/response"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	RoleKey       contextKey = "role"
	HospitalIDKey contextKey = "hospital_id"
)

const (
	RoleDoctor        = "doctor"
	RolePatient       = "patient"
	RoleAdmin         = "admin"
	RoleHospitalAdmin = "hospital_admin"
)

// Auth returns middleware that validates JWT
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			ctx = context.WithValue(ctx, HospitalIDKey, claims.HospitalID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetRole extracts role from context
func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

// GetHospitalID extracts the hospital scope of a hospital_admin token
func GetHospitalID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(HospitalIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// RequireRole returns middleware that checks user role
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			response.Forbidden(w, "Insufficient permissions")
		})
	}
}

// RequireDoctor returns middleware that requires doctor role
func RequireDoctor() func(http.Handler) http.Handler {
	return RequireRole(RoleDoctor)
}

// RequireAdmin returns middleware that requires platform admin role
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(RoleAdmin)
}

// RequireHospitalAdmin returns middleware that requires hospital admin role
func RequireHospitalAdmin() func(http.Handler) http.Handler {
	return RequireRole(RoleHospitalAdmin)
}

// InternalAuth guards service-to-service event endpoints with a shared key.
// The appointment lifecycle collaborator sends X-Internal-Key on every call.
func InternalAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				response.Unauthorized(w, "Internal API key not configured")
				return
			}
			given := r.Header.Get("X-Internal-Key")
			if subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				response.Unauthorized(w, "Invalid internal API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
