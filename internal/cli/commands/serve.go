package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/cli/ui"
	"github.com/conduit-lang/activerow/internal/config"
	"github.com/conduit-lang/activerow/internal/metrics"
	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/web/auth"
	"github.com/conduit-lang/activerow/internal/web/profiling"
	"github.com/conduit-lang/activerow/internal/web/router"
	"github.com/conduit-lang/activerow/internal/web/server"
)

var (
	servePort            int
	serveHost            string
	serveShutdownTimeout time.Duration
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the declared models over HTTP",
		Long: `Serve every model in the models file as a JSON API.

Each request runs in its own unit of work: entities it touches are
flushed when the response has been written. Bearer tokens are verified
when auth.secret is set and their roles drive field and record access.`,
		Example: `  # Serve with ./activerow.yaml
  activerow serve

  # Override the listen port
  activerow serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (overrides server.host)")
	cmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), noColor))
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	var observer entity.Observer
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, err := metrics.NewCollector(promReg)
		if err != nil {
			return err
		}
		observer = collector
		metricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, observer)
	if err != nil {
		return err
	}

	gs, err := buildServer(a, metricsHandler)
	if err != nil {
		a.Close(context.WithoutCancel(ctx))
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ Serving %d models on http://%s%s\n",
		len(a.registry.List()), cfg.Address(), cfg.Server.APIPrefix)
	if cfg.Auth.Secret == "" {
		fmt.Fprint(out, ui.Warning("auth.secret is empty: requests carry no roles", noColor))
	}

	return gs.Run(ctx)
}

// buildServer wires the router, the optional profiling listener and the
// app's resources into a graceful shutdown sequence
func buildServer(a *app, metricsHandler http.Handler) (*server.GracefulShutdown, error) {
	cfg := a.cfg

	var tokens *auth.TokenService
	if cfg.Auth.Secret != "" {
		var err error
		tokens, err = auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
	}

	handler := router.New(router.Config{
		Manager:      a.mgr,
		Logger:       a.logger.Named("http"),
		Tokens:       tokens,
		AuthRequired: tokens != nil,
		APIPrefix:    cfg.Server.APIPrefix,
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Metrics.Path,
	})

	srvConfig := server.DefaultConfig(cfg.Address(), handler)
	srvConfig.Logger = a.logger
	srv, err := server.New(srvConfig)
	if err != nil {
		return nil, err
	}

	gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: serveShutdownTimeout,
		Logger:  a.logger,
	})
	// hooks run last-registered first, so the logger syncs after the rest
	gs.RegisterHook("logger", func(context.Context) error {
		a.logger.Sync()
		return nil
	})
	for _, c := range a.closers {
		gs.RegisterHook(c.name, c.fn)
	}

	if err := startProfiling(cfg, a.logger, gs); err != nil {
		return nil, err
	}
	return gs, nil
}

// startProfiling serves pprof on debug.pprof_addr when it is set
func startProfiling(cfg *config.Config, logger *zap.Logger, gs *server.GracefulShutdown) error {
	if cfg.Debug.PprofAddr == "" {
		return nil
	}

	pprofConfig := server.DefaultConfig(cfg.Debug.PprofAddr, profiling.Handler(profiling.Config{}))
	// CPU profiles and traces stream for longer than a normal request
	pprofConfig.WriteTimeout = 0
	pprofConfig.Logger = logger.Named("pprof")
	srv, err := server.New(pprofConfig)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("profiling server stopped", zap.Error(err))
		}
	}()
	gs.RegisterHook("pprof", srv.Shutdown)
	return nil
}
