// app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/formmail/config"
	"github.com/dalemusser/formmail/httputil"
	"github.com/dalemusser/formmail/logging"
	"github.com/dalemusser/formmail/metrics"
	"github.com/dalemusser/formmail/server"
	"github.com/dalemusser/formmail/version"
	"go.uber.org/zap"
)

// Hooks are the integration points a service provides to Run.
// C is the service's own config, B its bundle of backends (mail transport,
// token verifier, ...).
type Hooks[C any, B any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the core config and the service config. It usually
	// calls config.Load and then validates the app keys.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// Connect builds the backends the handler needs.
	Connect func(ctx context.Context, core *config.CoreConfig, appCfg C, logger *zap.Logger) (B, error)

	// Startup runs optional checks once backends exist, e.g. probing the
	// mail server. May be nil.
	Startup func(ctx context.Context, core *config.CoreConfig, appCfg C, backends B, logger *zap.Logger) error

	// BuildHandler constructs the final http.Handler: router, middleware, routes.
	BuildHandler func(core *config.CoreConfig, appCfg C, backends B, logger *zap.Logger) (http.Handler, error)

	// Serve replaces server.ListenAndServeWithContext when set (tests).
	Serve func(ctx context.Context, core *config.CoreConfig, handler http.Handler, logger *zap.Logger) error
}

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load core + app config (Hooks.LoadConfig)
//  3. Build final logger from core config
//  4. Register default metrics
//  5. Build backends (Hooks.Connect)
//  6. Startup checks (Hooks.Startup, if provided)
//  7. Wire shutdown signals to a context
//  8. Build the HTTP handler (Hooks.BuildHandler)
//  9. Serve until shutdown
func Run[C any, B any](ctx context.Context, hooks Hooks[C, B]) error {
	bootstrap := logging.BootstrapLogger()
	defer func() { _ = bootstrap.Sync() }()
	bootstrap.Info("bootstrap logger initialized", zap.String("app", hooks.Name))

	coreCfg, appCfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger, err := logging.BuildLogger(coreCfg.LogLevel, coreCfg.Env, hooks.Name)
	if err != nil {
		bootstrap.Error("logger build failed", zap.Error(err))
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	httputil.SetLogger(logger)
	logger.Info("logger initialized",
		zap.String("app", hooks.Name),
		zap.String("version", version.String()))

	logger.Debug("core config", zap.String("config", coreCfg.Dump()))

	metrics.RegisterDefault(logger)

	backends, err := hooks.Connect(ctx, coreCfg, appCfg, logger)
	if err != nil {
		logger.Error("backend setup failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}

	if hooks.Startup != nil {
		startCtx, cancel := context.WithTimeout(ctx, coreCfg.HTTP.ShutdownTimeout)
		err := hooks.Startup(startCtx, coreCfg, appCfg, backends, logger)
		cancel()
		if err != nil {
			logger.Error("startup check failed", zap.Error(err))
			return fmt.Errorf("startup: %w", err)
		}
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, appCfg, backends, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	serve := hooks.Serve
	if serve == nil {
		serve = server.ListenAndServeWithContext
	}
	if err := serve(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
