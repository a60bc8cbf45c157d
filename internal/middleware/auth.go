package middleware

import (
	"net/http"
	"strings"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/internal/auth"
	"go.uber.org/zap"
)

// ValidateAuth checks the Bearer token and stashes the actor's UUID and role
// into request headers for the handlers downstream.
func ValidateAuth(secret string) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateJWT(tokenString, secret)
			if err != nil {
				sugar.Errorw("Invalid token", "error", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			r.Header.Set("UUID", claims.UUID)
			r.Header.Set("Role", string(claims.Role))

			h.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects actors whose role is not in the allowed set. Must run
// after ValidateAuth.
func RequireRole(roles ...auth.Role) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorRole := auth.Role(r.Header.Get("Role"))
			for _, role := range roles {
				if actorRole == role {
					h.ServeHTTP(w, r)
					return
				}
			}

			sugar.Infow("role not permitted", "role", actorRole, "path", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
