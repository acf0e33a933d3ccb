package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"slroute/internal/refresher"
	"slroute/internal/transit"
)

type HealthHandler struct {
	refresher *refresher.Refresher
	store     *transit.Store
}

func NewHealthHandler(r *refresher.Refresher, s *transit.Store) *HealthHandler {
	return &HealthHandler{
		refresher: r,
		store:     s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	SiteCount  int       `json:"siteCount"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.refresher.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:      ready,
		SiteCount:  h.store.SiteCount(),
		ServerTime: time.Now(),
	})
}
