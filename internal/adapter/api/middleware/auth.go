package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

const DeviceKeyHeader = "X-Device-Key"

type contextKey string

const actorContextKey contextKey = "actor_id"

// Auth is a middleware factory that returns a new authentication middleware.
// It validates the device key in the X-Device-Key header and stores the
// resolved actor id on the request context.
func Auth(repo domain.DeviceKeyRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceKey := r.Header.Get(DeviceKeyHeader)
			if deviceKey == "" {
				logger.Warn("device key missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: device key required", http.StatusUnauthorized)
				return
			}

			actorID, err := repo.ActorFor(r.Context(), deviceKey)
			if err != nil {
				if errors.Is(err, domain.ErrDeviceKeyInvalid) {
					logger.Warn("invalid device key provided", "remote_addr", r.RemoteAddr)
					http.Error(w, "Unauthorized: invalid device key", http.StatusUnauthorized)
					return
				}
				logger.Error("failed to validate device key", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorID returns the authenticated actor id stored by Auth.
func ActorID(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(actorContextKey).(string)
	return actorID, ok
}
