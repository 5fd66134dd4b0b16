// Package identity extracts the already-verified actor from request headers.
// Credential verification happens upstream (the gateway validates the Azure AD
// token and forwards claims as headers); this service only consumes the
// resulting identity and role claim.
package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shopfront/orders-service/internal/domain"
)

const (
	headerUserID    = "X-User-Id"
	headerUserName  = "X-User-Name"
	headerUserRoles = "X-User-Roles"
	headerRequestID = "X-Request-Id"

	adminRole = "admin"
)

type contextKey int

const (
	actorKey contextKey = iota
	requestIDKey
)

// ActorFromContext returns the actor attached by Middleware. The second
// return is false on requests that never passed through it.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// RequestIDFromContext returns the request correlation id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func actorFromHeaders(r *http.Request) domain.Actor {
	actor := domain.Actor{
		ID:   r.Header.Get(headerUserID),
		Name: r.Header.Get(headerUserName),
	}
	for _, role := range strings.Split(r.Header.Get(headerUserRoles), ",") {
		if strings.TrimSpace(role) == adminRole {
			actor.Admin = true
		}
	}
	return actor
}

// Middleware attaches the verified actor and a request id to the context.
// Inbound request ids are kept for cross-service correlation; absent ones
// get a fresh uuid.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(headerRequestID, requestID)

		ctx := context.WithValue(r.Context(), actorKey, actorFromHeaders(r))
		ctx = context.WithValue(ctx, requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests that carry no user identity.
func RequireUser(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || actor.ID == "" {
			writeError(w, logger, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

// RequireAdmin rejects requests whose actor lacks the admin role.
func RequireAdmin(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || actor.ID == "" {
			writeError(w, logger, http.StatusUnauthorized, "authentication required")
			return
		}
		if !actor.Admin {
			writeError(w, logger, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}
