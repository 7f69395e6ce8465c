package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"student-deals-admin-api/internal/cache"
	"student-deals-admin-api/internal/config"
	"student-deals-admin-api/internal/database"
	"student-deals-admin-api/internal/events"
	"student-deals-admin-api/internal/features"
	"student-deals-admin-api/internal/handler"
	"student-deals-admin-api/internal/jobs"
	"student-deals-admin-api/internal/middleware"
	"student-deals-admin-api/internal/service"
	"student-deals-admin-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Config file path (JSON or YAML)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "student-deals-admin-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureCacheEnabled, cfg.Cache.Enabled, "Serve dashboard stats from cache")
	flags.Register(features.FeatureStatsRefreshEnabled, cfg.Jobs.StatsRefreshEnabled, "Warm the stats cache on a schedule")
	flags.Register(features.FeatureAuditEventsEnabled, true, "Publish audit events for admin reads")
	defer flags.Shutdown()

	// Audit events: log subscriber
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureAuditEventsEnabled))
	eventManager.Subscribe(events.EventStatsComputed, func(ctx context.Context, e events.Event) error {
		log.Printf("audit: dashboard stats computed at %s", e.Timestamp.Format(time.RFC3339))
		return nil
	})
	eventManager.Subscribe(events.EventStudentStatsViewed, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.StudentStatsViewedData); ok {
			log.Printf("audit: student %s stats viewed", data.StudentID)
		}
		return nil
	})
	defer eventManager.Shutdown()

	// Initialize service
	svc := service.NewService(db, eventManager)

	// Stats cache: Redis when configured, in-memory otherwise
	var statsCache *cache.StatsCache
	if cfg.Cache.Enabled {
		var backing cache.Cache
		if cfg.Cache.RedisAddr != "" {
			redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			if err != nil {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			defer redisCache.Close()
			backing = redisCache
		} else {
			backing = cache.NewInMemoryCache()
		}
		statsCache = cache.NewStatsCache(backing, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	// Initialize handlers
	h := handler.NewHandlerWithOptions(svc, handler.Options{
		StatsCache: statsCache,
		Flags:      flags,
	})

	// Background cache warmer
	if statsCache != nil && flags.IsEnabled(features.FeatureStatsRefreshEnabled) {
		refresher, err := jobs.NewStatsRefresher(svc, statsCache, cfg.Jobs.StatsRefreshSpec)
		if err != nil {
			log.Fatalf("Failed to schedule stats refresh: %v", err)
		}
		refresher.Start()
		defer refresher.Stop()
	}

	// Initialize rate limiter
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())

	if rateLimiter != nil {
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Admin routes: session check runs before anything touches the store
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth([]byte(cfg.Security.AdminSessionSecret), cfg.Security.AdminCookieName))
		r.Get("/stats", h.GetDashboardStats)
		r.Get("/students/{student_id}/stats", h.GetStudentAdminStats)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
