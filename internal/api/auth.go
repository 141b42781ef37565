package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medibook/hospital-scheduling/internal/scheduling"
)

// Actor is the authenticated identity the web layer hands to the core. Who
// may do what is decided per operation by the core itself; the middleware
// only establishes who is calling.
type Actor struct {
	ID   uuid.UUID
	Role scheduling.Role
}

const actorKey contextKey = "actor"

type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the Actor in the
// request context. Token issuance (login, password handling) lives outside
// this service.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token is required")
				return
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			claims := &actorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token subject must be a UUID")
				return
			}

			role := scheduling.Role(claims.Role)
			switch role {
			case scheduling.RoleAdmin, scheduling.RoleDoctor, scheduling.RolePatient:
			default:
				writeError(w, http.StatusUnauthorized, "invalid_token", "token carries an unknown role")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose actor is not one of the given roles.
func RequireRole(roles ...scheduling.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_actor", "request is not authenticated")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "this role may not perform the operation")
		})
	}
}

// ActorFrom retrieves the authenticated actor from the context.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
