package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/credscout/internal/config"
	"github.com/gyaneshwarpardhi/credscout/internal/engine"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

// ConfigSource supplies the live configuration. *config.Loader satisfies it.
type ConfigSource interface {
	Config() *config.Config
	Reload() (*config.Config, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader ConfigSource
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader ConfigSource) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/agent/events", h.listEvents)
	h.mux.HandleFunc("POST /api/agent/trigger", h.trigger)
	h.mux.HandleFunc("POST /api/agent/reset", h.reset)
	h.mux.HandleFunc("POST /api/agent/feedback", h.feedback)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// GET /api/agent/events: everything the dashboard polls for.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	snap := h.eng.Store().Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events":       snap.Events,
		"logs":         snap.Logs,
		"score":        snap.Score,
		"integrations": h.loader.Config().Integrations(),
	})
}

type triggerRequest struct {
	BusinessID   string `json:"businessId"`
	BusinessName string `json:"businessName"`
	PlaceID      string `json:"placeId"`
	Mode         string `json:"mode"`
}

// POST /api/agent/trigger: start a cycle. Detached by default; mode "sync"
// waits for the cycle and returns the final snapshot.
func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	var body triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	cfg := h.loader.Config()
	req := engine.Request{
		BusinessID:   firstNonEmpty(body.BusinessID, cfg.Business.ID),
		BusinessName: firstNonEmpty(body.BusinessName, cfg.Business.Name),
		PlaceID:      firstNonEmpty(body.PlaceID, cfg.Business.PlaceID),
	}
	mode := firstNonEmpty(body.Mode, cfg.Cycle.Mode)

	switch mode {
	case config.ModeSync:
		res, err := h.eng.RunSync(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"triggered":    true,
			"businessName": req.BusinessName,
			"result":       res,
		})
	case config.ModeDetached:
		if err := h.eng.Trigger(req); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"triggered":    true,
			"businessName": req.BusinessName,
		})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
	}
}

// POST /api/agent/reset: back to the initial demo state.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.eng.Reset()
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

type feedbackRequest struct {
	EventID          string         `json:"eventId"`
	Feedback         event.Feedback `json:"feedback"`
	ModifiedResponse string         `json:"modifiedResponse"`
}

// POST /api/agent/feedback: record an operator verdict on a drafted response.
func (h *Handler) feedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if body.EventID == "" || body.Feedback == "" {
		writeError(w, http.StatusBadRequest, "eventId and feedback are required")
		return
	}
	if err := h.eng.RecordFeedback(body.EventID, body.Feedback, body.ModifiedResponse); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recorded": true,
		"feedback": body.Feedback,
		"message":  fmt.Sprintf("Learning signal recorded: %s. Future responses will adapt.", body.Feedback),
	})
}

// POST /v1/config/reload: re-read config from disk; registered callbacks rebuild the pipeline.
// An invalid file is rejected with 422 and the running config is kept.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if errors.Is(err, config.ErrInvalidConfig) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":     true,
		"version":      cfg.Version,
		"integrations": cfg.Integrations(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the cycle queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidFeedback):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
