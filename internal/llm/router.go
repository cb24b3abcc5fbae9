package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/manthanabc/EDAI-5/internal/telemetry"
)

// Backend names.
const (
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
)

// geminiKeyPrefix marks Google API keys. Routing depends only on it, never
// on the model name.
const geminiKeyPrefix = "AIza"

// Selector picks the gateway for a credential.
type Selector interface {
	Select(apiKey string) Gateway
}

// BackendFor returns the backend a credential routes to.
func BackendFor(apiKey string) string {
	if strings.HasPrefix(strings.TrimSpace(apiKey), geminiKeyPrefix) {
		return BackendGemini
	}
	return BackendOpenRouter
}

// RouterConfig holds the endpoints and headers used by the backends.
type RouterConfig struct {
	OpenRouterURL string
	GeminiBaseURL string
	SiteURL       string
	SiteTitle     string
	HTTPClient    *http.Client
}

// Router selects a backend per credential and instruments every call.
type Router struct {
	cfg    RouterConfig
	logger *slog.Logger
	tracer trace.Tracer

	callDuration metric.Float64Histogram
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("edai/llm")
	dur, _ := meter.Float64Histogram("edai.gateway.duration",
		metric.WithDescription("Time spent in model gateway calls (ms)"),
		metric.WithUnit("ms"),
	)
	return &Router{
		cfg:          cfg,
		logger:       logger,
		tracer:       otel.Tracer("edai/llm"),
		callDuration: dur,
	}
}

// Select implements Selector.
func (r *Router) Select(apiKey string) Gateway {
	backend := BackendFor(apiKey)
	r.logger.Debug("llm: routing", "backend", backend, "key_length", len(strings.TrimSpace(apiKey)))

	var gw Gateway
	switch backend {
	case BackendGemini:
		gw = NewGeminiClient(apiKey, r.cfg.GeminiBaseURL)
	default:
		gw = NewOpenRouterClient(apiKey, r.cfg.OpenRouterURL, r.cfg.SiteURL, r.cfg.SiteTitle, r.cfg.HTTPClient)
	}
	return &instrumented{backend: backend, next: gw, router: r}
}

type instrumented struct {
	backend string
	next    Gateway
	router  *Router
}

func (g *instrumented) Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	ctx, span := g.router.tracer.Start(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.backend", g.backend),
			attribute.String("llm.model", model),
			attribute.Int("llm.messages", len(messages)),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := g.next.Complete(ctx, model, messages, temperature)
	elapsed := float64(time.Since(start).Milliseconds())

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	g.router.callDuration.Record(ctx, elapsed, metric.WithAttributes(
		attribute.String("backend", g.backend),
		attribute.String("status", status),
	))
	return text, err
}
