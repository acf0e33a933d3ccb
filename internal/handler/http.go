package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"slroute/internal/config"
	"slroute/internal/domain"
	"slroute/internal/optimizer"
	"slroute/internal/trajectory"
)

// RouteHandler exposes the optimization pipeline over HTTP.
type RouteHandler struct {
	optimizer *optimizer.Optimizer
	cfg       *config.Config
	logger    *slog.Logger
}

func NewRouteHandler(opt *optimizer.Optimizer, cfg *config.Config, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{optimizer: opt, cfg: cfg, logger: logger}
}

type OptimizeOptions struct {
	RadiusMeters   *float64 `json:"radius_meters,omitempty"`
	Broad          bool     `json:"broad,omitempty"`
	MaxSites       *int     `json:"max_sites,omitempty"`
	WindowMinutes  *int     `json:"window_minutes,omitempty"`
	TransportMode  string   `json:"transport_mode,omitempty"`
	SampleStep     *int     `json:"sample_step,omitempty"`
	MinStayMinutes *int     `json:"min_stay_minutes,omitempty"`
	SortByExpected *bool    `json:"sort_by_expected,omitempty"`
}

type OptimizeRequest struct {
	Waypoints    []trajectory.RawPoint `json:"waypoints"`
	Destinations []domain.Point        `json:"destinations,omitempty"`
	Options      *OptimizeOptions      `json:"options,omitempty"`
}

type OptimizeResponse struct {
	*optimizer.Result
	Count      int       `json:"count"`
	ServerTime time.Time `json:"server_time"`
}

func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	traj, err := trajectory.Parse(req.Waypoints)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := h.buildOptions(req.Options)

	// The request context carries through to the fetch workers, so a client
	// hang-up cancels the run.
	result, err := h.optimizer.Run(r.Context(), traj, req.Destinations, opts)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OptimizeResponse{
		Result:     result,
		Count:      len(result.Entries),
		ServerTime: time.Now(),
	})
}

func (h *RouteHandler) buildOptions(o *OptimizeOptions) optimizer.Options {
	opts := optimizer.Options{
		RadiusMeters:    h.cfg.StrictRadiusMeters,
		MaxSites:        h.cfg.MaxNearbySites,
		DepartureWindow: h.cfg.DepartureWindow,
		SampleStep:      h.cfg.SampleStep,
		MinStay:         h.cfg.MinStayDuration,
		Concurrency:     h.cfg.FetchConcurrency,
		SortByExpected:  h.cfg.SortByExpected,
	}
	if o == nil {
		return opts
	}

	if o.Broad {
		opts.RadiusMeters = h.cfg.BroadRadiusMeters
	}
	if o.RadiusMeters != nil {
		opts.RadiusMeters = *o.RadiusMeters
	}
	if o.MaxSites != nil {
		opts.MaxSites = *o.MaxSites
	}
	if o.WindowMinutes != nil {
		opts.DepartureWindow = time.Duration(*o.WindowMinutes) * time.Minute
	}
	if o.SampleStep != nil {
		opts.SampleStep = *o.SampleStep
	}
	if o.MinStayMinutes != nil {
		opts.MinStay = time.Duration(*o.MinStayMinutes) * time.Minute
	}
	if o.SortByExpected != nil {
		opts.SortByExpected = *o.SortByExpected
	}
	opts.TransportMode = o.TransportMode
	return opts
}

func (h *RouteHandler) respondRunError(w http.ResponseWriter, err error) {
	var cfgErr domain.ConfigurationError
	var inputErr *domain.MalformedInputError

	switch {
	case errors.Is(err, domain.ErrNoReferenceData):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &cfgErr), errors.As(err, &inputErr):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("optimization run failed", "error", err)
		respondError(w, http.StatusInternalServerError, "optimization run failed")
	}
}

type TrajectoryStatsRequest struct {
	Waypoints      []trajectory.RawPoint `json:"waypoints"`
	MinStayMinutes *int                  `json:"min_stay_minutes,omitempty"`
}

type TrajectoryStatsResponse struct {
	Points          int                       `json:"points"`
	TotalDistanceKm float64                   `json:"total_distance_km"`
	Segments        []trajectory.SegmentStats `json:"segments"`
	Destinations    []int                     `json:"destination_indexes"`
}

// TrajectoryStats returns the derived view of a trajectory: per-leg stats and
// dwell-detected destinations.
func (h *RouteHandler) TrajectoryStats(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var req TrajectoryStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	traj, err := trajectory.Parse(req.Waypoints)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	minStay := h.cfg.MinStayDuration
	if req.MinStayMinutes != nil {
		minStay = time.Duration(*req.MinStayMinutes) * time.Minute
	}

	respondJSON(w, http.StatusOK, TrajectoryStatsResponse{
		Points:          traj.Len(),
		TotalDistanceKm: traj.TotalDistanceKm(),
		Segments:        traj.Segments(),
		Destinations:    traj.Destinations(minStay),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
