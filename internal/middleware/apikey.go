// AngelaMos | 2026
// apikey.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reportriser/backend/internal/core"
)

const APIKeyHeader = "X-API-Key"

type APIKeyPrincipal struct {
	KeyID  string
	UserID string
	Role   string
	Tier   string
}

type APIKeyVerifier interface {
	VerifyAPIKey(ctx context.Context, raw string) (*APIKeyPrincipal, error)
}

// APIKeyAuthenticator authenticates with X-API-Key when the header is present
// and falls back to the bearer token otherwise.
func APIKeyAuthenticator(
	keys APIKeyVerifier,
	tokens TokenVerifier,
) func(http.Handler) http.Handler {
	bearer := Authenticator(tokens)

	return func(next http.Handler) http.Handler {
		viaToken := bearer(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if raw == "" {
				viaToken.ServeHTTP(w, r)
				return
			}

			p, err := keys.VerifyAPIKey(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, core.ErrForbidden):
					core.JSONError(w, core.ForbiddenError("API access is not included in your plan"))
				case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrNotFound):
					core.JSONError(w, core.UnauthorizedError("invalid API key"))
				default:
					core.InternalServerError(w, err)
				}
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, p.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, p.Role)
			ctx = context.WithValue(ctx, UserTierKey, p.Tier)
			ctx = context.WithValue(ctx, APIKeyIDKey, p.KeyID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAPIKeyID(ctx context.Context) string {
	if id, ok := ctx.Value(APIKeyIDKey).(string); ok {
		return id
	}
	return ""
}
