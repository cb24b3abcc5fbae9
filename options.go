package edai

import (
	"log/slog"
	"net/http"
)

// Option configures an App.
type Option func(*resolvedOptions)

// Middleware wraps the root HTTP handler. It runs before routing, so it sees
// every request including /health.
type Middleware func(http.Handler) http.Handler

// resolvedOptions holds all extension points after applying defaults.
type resolvedOptions struct {
	port        int
	storage     string
	databaseURL string
	sqlitePath  string
	logger      *slog.Logger
	version     string
	httpClient  *http.Client
	middlewares []Middleware
	skipDotEnv  bool
}

// WithPort overrides the TCP port from config (EDAI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithStorage overrides the storage backend ("postgres" or "sqlite").
func WithStorage(backend string) Option {
	return func(o *resolvedOptions) { o.storage = backend }
}

// WithDatabaseURL overrides the Postgres connection string (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLitePath overrides the SQLite file (EDAI_SQLITE_PATH env var).
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithHTTPClient sets the client used for OpenRouter calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *resolvedOptions) { o.httpClient = c }
}

// WithMiddleware registers an outermost HTTP middleware. Middlewares apply in
// registration order: the first-registered is outermost.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithoutDotEnv skips loading a .env file from the working directory.
func WithoutDotEnv() Option {
	return func(o *resolvedOptions) { o.skipDotEnv = true }
}
