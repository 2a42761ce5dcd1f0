package api

import (
	"bytes"
	"net/http"

	"pathwatch/internal/metrics"
)

type statusHandler struct {
	watches Watches
	metrics *metrics.Registry
}

type healthResponse struct {
	Status         string `json:"status"`
	Handles        int    `json:"handles"`
	SharedWatchers int    `json:"shared_watchers"`
	Subscriptions  int    `json:"subscriptions"`
}

func (h *statusHandler) handleHealth(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return methodNotAllowed(w, "GET, HEAD")
	}
	stats := h.watches.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Handles:        stats.Handles,
		SharedWatchers: stats.SharedWatchers,
		Subscriptions:  stats.Subscriptions,
	})
	return nil
}

func (h *statusHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	var body bytes.Buffer
	if err := h.metrics.WritePrometheus(&body); err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "failed to render metrics"}
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
	return nil
}
