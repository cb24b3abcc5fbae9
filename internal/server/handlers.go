package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/ctxutil"
	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/rag"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
	"github.com/manthanabc/EDAI-5/internal/settings"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

// Message returned with 503 when the verdict stage failed.
const verdictUnavailableMessage = "AI Service is currently unavailable. Please try again later."

// ReferenceState reports whether the reference document is loaded.
// *rag.Index implements it.
type ReferenceState interface {
	State() rag.State
}

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	cases               *cases.Service
	settings            *settings.Resolver
	pinger              Pinger
	reference           ReferenceState
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Reference may be nil.
type HandlersDeps struct {
	Cases               *cases.Service
	Settings            *settings.Resolver
	Pinger              Pinger
	Reference           ReferenceState
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		cases:               d.Cases,
		settings:            d.Settings,
		pinger:              d.Pinger,
		reference:           d.Reference,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleAdjudicate handles POST /v1/cases/{case_id}/verdict.
// The body is optional; when present it may override the judge models.
func (h *Handlers) HandleAdjudicate(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req model.AdjudicateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil && !errors.Is(err, errEmptyBody) {
			handleDecodeError(w, r, err)
			return
		}
	}

	out, err := h.cases.Adjudicate(r.Context(), cases.AdjudicateInput{
		CaseID: caseID,
		Actor:  ctxutil.ActorFromContext(r.Context(), cases.DefaultActor),
		Options: adjudication.Options{
			JudgeModel:   req.JudgeModel,
			CoJudgeModel: req.CoJudgeModel,
		},
	})
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}

	resp := out.Response()
	if out.Result.Verdict.Failed {
		writeErrorDetails(w, r, http.StatusServiceUnavailable, model.ErrCodeServiceUnavailable,
			verdictUnavailableMessage, resp)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleListVerdicts handles GET /v1/cases/{case_id}/verdicts.
func (h *Handlers) HandleListVerdicts(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	hist, err := h.cases.Verdicts(r.Context(), caseID)
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hist)
}

// HandleAuditTrail handles GET /v1/cases/{case_id}/audit.
func (h *Handlers) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	entries, err := h.cases.AuditTrail(r.Context(), caseID)
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// HandleGetCase handles GET /v1/cases/{case_id}.
func (h *Handlers) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}
	c, err := h.cases.Get(r.Context(), caseID)
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// HandleListCases handles GET /v1/cases.
func (h *Handlers) HandleListCases(w http.ResponseWriter, r *http.Request) {
	list, err := h.cases.List(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// HandleCreateCase handles POST /v1/cases (admin). Evidence files must
// already exist under the evidence root; only their metadata is stored.
func (h *Handlers) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	var c model.Case
	if err := decodeJSON(w, r, &c, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	created, err := h.cases.ImportCase(r.Context(), c)
	if err != nil {
		h.writeCaseError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetSettings handles GET /v1/admin/settings. The API key is redacted;
// an unset configuration is returned as an empty object.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	stored, err := h.settings.Stored(r.Context())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, r, http.StatusOK, struct{}{})
	case err != nil:
		h.logger.Error("get settings failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to load settings")
	default:
		writeJSON(w, r, http.StatusOK, stored.Redacted())
	}
}

// HandlePutSettings handles PUT /v1/admin/settings.
func (h *Handlers) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var cfg model.ProviderConfig
	if err := decodeJSON(w, r, &cfg, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := h.settings.Save(r.Context(), cfg); err != nil {
		if errors.Is(err, settings.ErrInvalidConfig) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "Missing required fields")
			return
		}
		h.logger.Error("save settings failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to save settings")
		return
	}
	writeJSON(w, r, http.StatusOK, cfg.Redacted())
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Storage:   "connected",
		Reference: "disabled",
		Uptime:    int64(time.Since(h.startedAt).Seconds()),
	}
	status := http.StatusOK
	if err := h.pinger.Ping(r.Context()); err != nil {
		resp.Storage = "disconnected"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if h.reference != nil {
		resp.Reference = h.reference.State().String()
	}
	writeJSON(w, r, status, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI document.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

func (h *Handlers) writeCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "case not found")
	case errors.Is(err, cases.ErrAdjudicationInProgress):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "an adjudication for this case is already in progress")
	case errors.Is(err, cases.ErrInvalidCase):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.logger.Error("case request failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

func parseCaseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("case_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "case_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request, defaultVal int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	if n > storage.DefaultListLimit {
		return storage.DefaultListLimit
	}
	return n
}
