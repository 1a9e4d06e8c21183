package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pgcrud/pgcrud/pkg/auth"
	"github.com/pgcrud/pgcrud/pkg/config"
	"github.com/pgcrud/pgcrud/pkg/database"
	"github.com/pgcrud/pgcrud/pkg/handlers"
	"github.com/pgcrud/pgcrud/pkg/logging"
	"github.com/pgcrud/pgcrud/pkg/mcp"
	"github.com/pgcrud/pgcrud/pkg/mcp/tools"
	"github.com/pgcrud/pgcrud/pkg/middleware"
	"github.com/pgcrud/pgcrud/pkg/retry"
	"github.com/pgcrud/pgcrud/pkg/schema"
	"github.com/pgcrud/pgcrud/pkg/service"
	"github.com/pgcrud/pgcrud/pkg/surface"
)

// Build metadata, set at build time via ldflags.
var (
	Version        = "dev"
	GitHash        = "unknown"
	BuildTimestamp = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("addr", cfg.Addr()),
		zap.String("database", logging.SanitizeDSN(cfg.DatabaseURL)),
		zap.Bool("read_replica", cfg.ReadDatabaseURL != ""),
		zap.Bool("auth_enabled", cfg.AuthEnabled),
		zap.Bool("docs_enabled", cfg.DocsEnabled))

	ctx := context.Background()

	pools, err := connectPools(ctx, cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.String("error", logging.SanitizeError(err)))
	}
	defer pools.Close()

	introspector := schema.NewIntrospector(pools.Primary, schema.Options{
		IncludeNamespaces: cfg.IncludeNamespaces,
		ExcludeNamespaces: cfg.ExcludeNamespaces,
		ExcludeTables:     cfg.ExcludeTables,
	}, logger)
	model, err := introspector.Introspect(ctx)
	if err != nil {
		logger.Fatal("schema introspection failed", zap.String("error", logging.SanitizeError(err)))
	}
	logger.Info("schema introspected",
		zap.Int("tables", len(model.Entities)),
		zap.Strings("namespaces", model.Namespaces),
		zap.String("database_hash", model.Digest()))

	svc := service.New(model, pools.Primary, pools.Reader(), service.Limits{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		MaxBulkRows:     cfg.MaxBulkRows,
	}, logger)

	surfaceOpts := surface.Options{
		AuthEnabled:     cfg.AuthEnabled,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		MaxBulkRows:     cfg.MaxBulkRows,
	}

	var tokenEngine *auth.Engine
	if cfg.AuthEnabled {
		tokenEngine, err = auth.NewEngine(cfg.MasterSecret)
		if err != nil {
			logger.Fatal("token engine initialization failed", zap.Error(err))
		}
	}

	mux := http.NewServeMux()

	build := handlers.BuildInfo{
		Version:   cfg.Version,
		GitHash:   GitHash,
		Timestamp: BuildTimestamp,
	}
	handlers.NewHealthHandler(model, pools.Primary, build, cfg.AuthEnabled, logger).RegisterRoutes(mux)
	handlers.NewMetaHandler(svc, surfaceOpts, logger, cfg.ExposeDBErrors).RegisterRoutes(mux)
	handlers.NewCRUDHandler(svc, logger, cfg.ExposeDBErrors).RegisterRoutes(mux)

	publicPaths := []string{"/api/_health"}
	if cfg.DocsEnabled {
		handlers.NewDocsHandler().RegisterRoutes(mux)
		publicPaths = append(publicPaths, "/")
	}

	mcpServer := mcp.NewServer("pgcrud", cfg.Version, logger)
	tools.RegisterAll(mcpServer.MCP(), &tools.Deps{
		Service: svc,
		Surface: surfaceOpts,
		Logger:  logger,
	})
	mcpServer.RegisterResources(svc, surfaceOpts)
	mcpServer.RegisterPrompts(svc)
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())

	handler := auth.NewMiddleware(tokenEngine, publicPaths, logger).Wrap(mux)
	handler = middleware.BodyLimit(cfg.MaxBodyBytes)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "Mcp-Session-Id"},
			ExposedHeaders:   []string{"X-Request-ID", "Mcp-Session-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		})(handler)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting pgcrud",
			zap.String("addr", cfg.Addr()),
			zap.String("version", cfg.Version),
			zap.String("go_version", runtime.Version()))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown did not complete cleanly", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}

// connectPools opens the primary pool and, when configured, the read
// replica pool. Connection attempts back off and retry so the gateway
// can start alongside the database it fronts. A broken replica fails
// startup rather than silently degrading to the primary.
func connectPools(ctx context.Context, cfg *config.Config) (*database.Pools, error) {
	primary, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{URL: cfg.DatabaseURL})
	})
	if err != nil {
		return nil, err
	}

	pools := &database.Pools{Primary: primary}
	if cfg.ReadDatabaseURL != "" {
		read, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
			return database.NewConnection(ctx, &database.Config{URL: cfg.ReadDatabaseURL})
		})
		if err != nil {
			primary.Close()
			return nil, err
		}
		pools.Read = read
	}
	return pools, nil
}
