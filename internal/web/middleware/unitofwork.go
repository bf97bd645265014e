package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/unitofwork"
	"github.com/conduit-lang/activerow/internal/web/auth"
)

// UnitOfWork opens a unit of work per request, scoped to the caller's
// roles, and closes it when the handler returns or panics. Close failures
// are logged since the response has already been written.
func UnitOfWork(mgr *entity.Manager, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			s := unitofwork.Begin(mgr,
				unitofwork.WithLogger(logger.With(zap.String("request_id", requestID))),
				unitofwork.WithEntityOptions(entity.WithRoles(auth.RolesFrom(r.Context())...)))

			defer func() {
				if err := s.Close(r.Context()); err != nil {
					logger.Error("unit of work close failed",
						zap.String("request_id", requestID),
						zap.String("unit_of_work", s.ID()),
						zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(unitofwork.WithContext(r.Context(), s)))
		})
	}
}
