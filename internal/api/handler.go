package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/engine"
	"intercept-sandbox/internal/observability"
)

// Capper remembers recently displayed intercepts per session.
type Capper interface {
	Recent(ctx context.Context, sessionID, interceptID string) (bool, error)
	Record(ctx context.Context, sessionID, interceptID string, window time.Duration) error
}

type InterceptHandler struct {
	Eng  *engine.InterceptEngine
	Freq Capper // nil disables repeat windows
}

func NewInterceptHandler(eng *engine.InterceptEngine, freq Capper) *InterceptHandler {
	return &InterceptHandler{Eng: eng, Freq: freq}
}

// DeviceContext is what the SDK knows about where it runs.
type DeviceContext struct {
	OS     string `json:"os"`
	Locale string `json:"locale"`
}

type EvaluateRequest struct {
	BrandID    string            `json:"brand_id"`
	ProjectID  string            `json:"project_id"`
	SessionID  string            `json:"session_id"`
	Properties map[string]string `json:"properties"`
	Context    DeviceContext     `json:"context"`
}

type ImpressionRequest struct {
	BrandID   string `json:"brand_id"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
}

type ProjectResponse struct {
	engine.Project
	Intercepts []string `json:"intercepts"`
}

type ProjectEvaluation struct {
	Results map[string]engine.Decision `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	observability.RequestErrors.WithLabelValues(kind).Inc()
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *InterceptHandler) Project(w http.ResponseWriter, r *http.Request) {
	brandID, projectID := chi.URLParam(r, "brandID"), chi.URLParam(r, "projectID")
	p, ok := h.Eng.Project(brandID, projectID)
	if !ok {
		writeError(w, http.StatusNotFound, "project_not_found", "project not found")
		return
	}
	writeJSON(w, http.StatusOK, ProjectResponse{Project: p, Intercepts: h.Eng.InterceptIDs(brandID, projectID)})
}

func (h *InterceptHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluate(w, r)
	if !ok {
		return
	}
	ereq := toEngineRequest(req)
	ereq.InterceptID = chi.URLParam(r, "interceptID")

	d := h.capped(r.Context(), req.SessionID, h.Eng.Evaluate(r.Context(), ereq))
	observability.Evaluations.WithLabelValues(d.Reason).Inc()
	log.Debug().Str("intercept_id", d.InterceptID).Str("session_id", req.SessionID).
		Bool("passed", d.Passed).Str("reason", d.Reason).Msg("evaluate")
	writeJSON(w, http.StatusOK, d)
}

func (h *InterceptHandler) EvaluateProject(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvaluate(w, r)
	if !ok {
		return
	}
	req.BrandID, req.ProjectID = chi.URLParam(r, "brandID"), chi.URLParam(r, "projectID")
	if _, ok := h.Eng.Project(req.BrandID, req.ProjectID); !ok {
		writeError(w, http.StatusNotFound, "project_not_found", "project not found")
		return
	}

	out := ProjectEvaluation{Results: map[string]engine.Decision{}}
	for _, d := range h.Eng.MatchProject(r.Context(), toEngineRequest(req)) {
		d = h.capped(r.Context(), req.SessionID, d)
		observability.Evaluations.WithLabelValues(d.Reason).Inc()
		out.Results[d.InterceptID] = d
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InterceptHandler) Impression(w http.ResponseWriter, r *http.Request) {
	var req ImpressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.BrandID == "" || req.ProjectID == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "brand_id, project_id and session_id are required")
		return
	}
	id := chi.URLParam(r, "interceptID")
	ic, ok := h.Eng.Intercept(req.BrandID, req.ProjectID, id)
	if !ok {
		writeError(w, http.StatusNotFound, "intercept_not_found", "intercept not found")
		return
	}

	observability.Impressions.Inc()
	if h.Freq != nil {
		if err := h.Freq.Record(r.Context(), req.SessionID, ic.ID, ic.RepeatWindow); err != nil {
			log.Error().Err(err).Str("intercept_id", ic.ID).Msg("record impression")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// capped turns a passing decision into a miss when the session saw the
// intercept within its repeat window. Frequency store errors fail open.
func (h *InterceptHandler) capped(ctx context.Context, sessionID string, d engine.Decision) engine.Decision {
	if !d.Passed || d.RepeatWindow <= 0 || h.Freq == nil {
		return d
	}
	recent, err := h.Freq.Recent(ctx, sessionID, d.InterceptID)
	if err != nil {
		log.Warn().Err(err).Str("intercept_id", d.InterceptID).Msg("frequency lookup failed; allowing")
		return d
	}
	if recent {
		return engine.Decision{InterceptID: d.InterceptID, Reason: engine.ReasonRecentlyDisplayed, RepeatWindow: d.RepeatWindow}
	}
	return d
}

func decodeEvaluate(w http.ResponseWriter, r *http.Request) (EvaluateRequest, bool) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return req, false
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "session_id is required")
		return req, false
	}
	// project-scoped routes take brand and project from the path
	if chi.URLParam(r, "projectID") == "" && (req.BrandID == "" || req.ProjectID == "") {
		writeError(w, http.StatusBadRequest, "missing_field", "brand_id and project_id are required")
		return req, false
	}
	return req, true
}

func toEngineRequest(req EvaluateRequest) engine.Request {
	attrs := make(map[string]string, len(req.Properties)+2)
	for k, v := range req.Properties {
		attrs[k] = v
	}
	if req.Context.OS != "" {
		attrs[engine.DimOS] = req.Context.OS
	}
	if req.Context.Locale != "" {
		attrs[engine.DimLocale] = req.Context.Locale
	}
	return engine.Request{
		BrandID:    req.BrandID,
		ProjectID:  req.ProjectID,
		SessionID:  req.SessionID,
		Attributes: attrs,
	}
}
