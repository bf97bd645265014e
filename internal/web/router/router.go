// Package router exposes registered models over a JSON HTTP API
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/web/auth"
	"github.com/conduit-lang/activerow/internal/web/middleware"
	"github.com/conduit-lang/activerow/internal/web/response"
)

// HealthPath is served without authentication or request logging
const HealthPath = "/healthz"

// Config holds what the router needs
type Config struct {
	Manager *entity.Manager
	Logger  *zap.Logger

	// Tokens verifies bearer tokens; nil disables authentication
	Tokens       *auth.TokenService
	AuthRequired bool

	// APIPrefix is mounted in front of every model route, e.g. /api
	APIPrefix string

	// Metrics is served at MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
}

// New builds the HTTP handler:
//
//	GET    /healthz
//	GET    {prefix}/_schema
//	GET    {prefix}/_schema/{model}
//	GET    {prefix}/{model}?field=value&limit=n
//	POST   {prefix}/{model}
//	GET    {prefix}/{model}/{key}
//	PATCH  {prefix}/{model}/{key}
//	DELETE {prefix}/{model}/{key}
//	GET    {prefix}/{model}/{key}/{link}
func New(config Config) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{mgr: config.Manager, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, HealthPath, config.MetricsPath))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusNotFound, &response.ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
		})
	})

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if config.Metrics != nil && config.MetricsPath != "" {
		r.Method(http.MethodGet, config.MetricsPath, config.Metrics)
	}

	api := func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Tokens:   config.Tokens,
			Required: config.AuthRequired,
			Logger:   logger,
		}))

		r.Get("/_schema", h.listModels)
		r.Get("/_schema/{model}", h.describeModel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UnitOfWork(config.Manager, logger))

			r.Get("/{model}", h.list)
			r.Post("/{model}", h.create)
			r.Get("/{model}/{key}", h.show)
			r.Patch("/{model}/{key}", h.update)
			r.Delete("/{model}/{key}", h.remove)
			r.Get("/{model}/{key}/{link}", h.link)
		})
	}

	if config.APIPrefix != "" {
		r.Route(config.APIPrefix, api)
	} else {
		r.Group(api)
	}
	return r
}
