package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/web/auth"
	"github.com/conduit-lang/activerow/internal/web/response"
)

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	// Tokens verifies bearer tokens. When nil every request is anonymous.
	Tokens *auth.TokenService
	// Required rejects requests without a token. Otherwise they proceed
	// anonymously and only role rules restrict them.
	Required bool
	// SkipPaths is a list of paths to skip authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// Auth creates an authentication middleware. A valid bearer token puts
// its subject and roles into the request context.
func Auth(config AuthConfig) Middleware {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skipPath := range config.SkipPaths {
				if r.URL.Path == skipPath {
					next.ServeHTTP(w, r)
					return
				}
			}
			if config.Tokens == nil {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if config.Required {
					response.RenderUnauthorized(w, "")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// Parse Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				response.RenderUnauthorized(w, "Invalid authorization format")
				return
			}

			claims, err := config.Tokens.Verify(parts[1])
			if err != nil {
				config.Logger.Debug("token rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err))
				response.RenderUnauthorized(w, "Invalid token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{
				Subject: claims.Subject,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
