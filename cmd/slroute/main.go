package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"slroute/internal/cache"
	"slroute/internal/config"
	"slroute/internal/handler"
	"slroute/internal/hub"
	"slroute/internal/metrics"
	"slroute/internal/middleware"
	"slroute/internal/optimizer"
	"slroute/internal/refresher"
	"slroute/internal/transit"
	"slroute/pkg/gtfs"
	"slroute/pkg/slapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting slroute server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
		"gtfs_fallback", cfg.GTFSFallbackEnabled,
	)

	collector := metrics.NewCollector()
	transitStore := transit.New(cfg.KeepUndeviatedLines)
	apiClient := slapi.New(slapi.Config{
		TransportBaseURL: cfg.TransportBaseURL,
		DeviationsURL:    cfg.DeviationsURL,
		APIKey:           cfg.SLAPIKey,
		AuthorityID:      cfg.AuthorityID,
		Timeout:          cfg.RequestTimeout,
	})

	var fallback refresher.FallbackSiteSource
	if cfg.GTFSFallbackEnabled {
		fallback = gtfs.NewLoader(cfg.GTFSURL, logger)
	}
	refr := refresher.New(apiClient, fallback, transitStore, cfg.RefreshInterval, collector, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without minimal site data no optimization run can do anything useful,
	// so a completely failed initial load is fatal.
	if err := refr.EnsureReference(ctx); err != nil {
		logger.Error("initial reference data load failed", "error", err)
		os.Exit(1)
	}

	var departures optimizer.DepartureSource = apiClient
	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("redis connection failed, continuing without cache", "error", err)
		} else {
			defer redisCache.Close()
			departures = cache.NewCachedDepartures(apiClient, redisCache, cfg.DepartureTTL, collector, logger)
			snapshotter := cache.NewSnapshotWriter(redisCache, transitStore, cfg.SnapshotInterval, cfg.SnapshotTTL, logger)
			go snapshotter.Run(ctx)
		}
	}

	wsHub := hub.NewHub(logger)
	opt := optimizer.New(transitStore, departures, wsHub, collector, logger)

	routeHandler := handler.NewRouteHandler(opt, cfg, logger)
	transitHandler := handler.NewTransitHandler(transitStore, cfg.BroadRadiusMeters, cfg.MaxNearbySites, logger)
	wsHandler := handler.NewWSHandler(wsHub, logger)
	healthHandler := handler.NewHealthHandler(refr, transitStore)
	statsHandler := handler.NewStatsHandler(transitStore)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/routes/optimize", routeHandler.Optimize)
	mux.HandleFunc("POST /v1/trajectory/stats", routeHandler.TrajectoryStats)
	mux.HandleFunc("GET /v1/sites", transitHandler.ListSites)
	mux.HandleFunc("GET /v1/sites/nearby", transitHandler.NearbySites)
	mux.HandleFunc("GET /v1/timetable/merged", transitHandler.MergedTimetable)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)

	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	limiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		handler.ServerStats.IncRateLimitBlocked,
		logger,
	)

	var root http.Handler = mux
	root = limiter.Middleware(root)
	root = handler.GzipMiddleware(root)
	root = handler.CORSMiddleware(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)
	go refr.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
