// Package edai wires the EDAI adjudication server.
//
// Binaries and embedders construct an App and run it:
//
//	app, err := edai.New(
//	    edai.WithVersion(version),
//	    edai.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// New connects storage and builds every component but starts no goroutines,
// so command-line tools can use the same wiring for one-shot operations.
package edai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/manthanabc/EDAI-5/api"
	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/config"
	"github.com/manthanabc/EDAI-5/internal/evidence"
	"github.com/manthanabc/EDAI-5/internal/llm"
	"github.com/manthanabc/EDAI-5/internal/mcp"
	"github.com/manthanabc/EDAI-5/internal/rag"
	"github.com/manthanabc/EDAI-5/internal/ratelimit"
	"github.com/manthanabc/EDAI-5/internal/server"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
	"github.com/manthanabc/EDAI-5/internal/settings"
	"github.com/manthanabc/EDAI-5/internal/storage"
	"github.com/manthanabc/EDAI-5/internal/storage/sqlite"
	"github.com/manthanabc/EDAI-5/internal/telemetry"
	"github.com/manthanabc/EDAI-5/migrations"
)

const (
	shutdownHTTPTimeout  = 10 * time.Second
	referenceLoadTimeout = 2 * time.Minute
)

// App is the EDAI server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	store        storage.Store
	srv          *server.Server
	limiter      ratelimit.Limiter
	reference    *rag.Index
	settings     *settings.Resolver
	cases        *cases.Service
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New loads configuration, opens storage and wires all subsystems.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	if !o.skipDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.storage != "" {
		cfg.Storage = o.storage
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("edai starting", "version", version, "port", cfg.Port, "storage", cfg.Storage)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, err
	}

	// Model gateways. The backend is chosen per call from the resolved key.
	router := llm.NewRouter(llm.RouterConfig{
		OpenRouterURL: cfg.OpenRouterURL,
		GeminiBaseURL: cfg.GeminiBaseURL,
		SiteURL:       cfg.SiteURL,
		SiteTitle:     cfg.SiteTitle,
		HTTPClient:    o.httpClient,
	}, logger)

	reference := rag.NewIndex(rag.SourceFor(cfg.ReferenceDoc, cfg.ReferencePages), logger)
	encoder := evidence.NewEncoder(cfg.EvidenceRoot, cfg.EvidenceMaxSize, logger)

	pipeline := adjudication.New(adjudication.Config{
		Gateways:       router,
		Encoder:        encoder,
		Retriever:      reference,
		GuidelinesPath: cfg.GuidelinesPath,
		Temperature:    cfg.Temperature,
		StageTimeout:   cfg.StageTimeout,
	}, logger)

	resolver := settings.NewResolver(store, cfg.ProviderDefaults(), logger)
	caseSvc := cases.New(store, resolver, pipeline, adjudication.NewCaseLocks(), logger)

	var mcpSrv *mcp.Server
	if cfg.AdminToken != "" {
		mcpSrv = mcp.New(caseSvc, reference, logger, version)
	} else {
		logger.Info("admin interface: disabled (no EDAI_ADMIN_TOKEN)")
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	middlewares := make([]func(http.Handler) http.Handler, 0, len(o.middlewares))
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	srvCfg := server.ServerConfig{
		Cases:               caseSvc,
		Settings:            resolver,
		Pinger:              store,
		Logger:              logger,
		Limiter:             limiter,
		Reference:           reference,
		Middlewares:         middlewares,
		AdminToken:          cfg.AdminToken,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	}
	if mcpSrv != nil {
		srvCfg.MCPServer = mcpSrv.MCPServer()
	}

	return &App{
		cfg:          cfg,
		store:        store,
		srv:          server.New(srvCfg),
		limiter:      limiter,
		reference:    reference,
		settings:     resolver,
		cases:        caseSvc,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// openStore connects the configured backend. Postgres runs the embedded
// migrations; SQLite applies its schema on open.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := storage.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return db, nil
	case config.StorageSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Storage)
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// Cases returns the case service used by the HTTP and MCP surfaces.
func (a *App) Cases() *cases.Service { return a.cases }

// Settings returns the provider configuration resolver.
func (a *App) Settings() *settings.Resolver { return a.settings }

// Reference returns the reference document index.
func (a *App) Reference() *rag.Index { return a.reference }

// Run warms the reference index in the background, serves HTTP, and blocks
// until ctx is cancelled or the server fails. Shutdown is called on return.
func (a *App) Run(ctx context.Context) error {
	go a.warmReference(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// warmReference loads the reference document so the first adjudication does
// not pay for parsing it. Failure is non-fatal; retrieval retries lazily.
func (a *App) warmReference(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, referenceLoadTimeout)
	defer cancel()
	if err := a.reference.Load(ctx); err != nil {
		a.logger.Warn("rag: reference warm-up failed", "path", a.cfg.ReferenceDoc, "error", err)
	}
}

// Shutdown drains in-flight HTTP requests, then releases storage, the
// limiter and telemetry. Adjudications still running after the HTTP drain
// timeout are cancelled with their requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("edai shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, shutdownHTTPTimeout)
	err := a.srv.Shutdown(httpCtx)
	cancel()
	if err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	a.Close()
	a.logger.Info("edai stopped")
	return err
}

// Close releases resources without touching the HTTP server. Use it when
// the App was built only for one-shot operations.
func (a *App) Close() {
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	_ = a.otelShutdown(context.Background())
	a.store.Close(context.Background())
}
