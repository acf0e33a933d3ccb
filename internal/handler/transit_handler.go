package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"slroute/internal/domain"
	"slroute/internal/proximity"
	"slroute/internal/transit"
)

// TransitHandler exposes the cached reference data: the site list, nearest
// sites around a point, and the merged timetable.
type TransitHandler struct {
	store  *transit.Store
	logger *slog.Logger

	defaultRadius float64
	defaultN      int
}

func NewTransitHandler(store *transit.Store, defaultRadius float64, defaultN int, logger *slog.Logger) *TransitHandler {
	return &TransitHandler{
		store:         store,
		logger:        logger,
		defaultRadius: defaultRadius,
		defaultN:      defaultN,
	}
}

type SitesResponse struct {
	Sites      []domain.Site `json:"sites"`
	Count      int           `json:"count"`
	ServerTime time.Time     `json:"server_time"`
}

func (h *TransitHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	sites := h.store.Sites()
	respondJSON(w, http.StatusOK, SitesResponse{
		Sites:      sites,
		Count:      len(sites),
		ServerTime: time.Now(),
	})
}

type NearbySitesResponse struct {
	Matches    []proximity.Match `json:"matches"`
	Count      int               `json:"count"`
	ServerTime time.Time         `json:"server_time"`
}

func (h *TransitHandler) NearbySites(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid or missing lat parameter")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid or missing lon parameter")
		return
	}

	radius := h.defaultRadius
	if v := r.URL.Query().Get("radius"); v != "" {
		if radius, err = strconv.ParseFloat(v, 64); err != nil {
			respondError(w, http.StatusBadRequest, "invalid radius parameter")
			return
		}
	}
	n := h.defaultN
	if v := r.URL.Query().Get("n"); v != "" {
		if n, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid n parameter")
			return
		}
	}

	matcher := proximity.NewMatcher(h.store.Sites())
	matches, err := matcher.Nearest(domain.Point{Lat: lat, Lon: lon}, radius, n)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, NearbySitesResponse{
		Matches:    matches,
		Count:      len(matches),
		ServerTime: time.Now(),
	})
}

type MergedTimetableResponse struct {
	Lines      map[string][]domain.MergedLine `json:"lines"`
	Count      int                            `json:"count"`
	ServerTime time.Time                      `json:"server_time"`
}

func (h *TransitHandler) MergedTimetable(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	merged := h.store.Merged()
	respondJSON(w, http.StatusOK, MergedTimetableResponse{
		Lines:      merged,
		Count:      len(merged),
		ServerTime: time.Now(),
	})
}
