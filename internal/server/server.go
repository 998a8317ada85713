package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"streetbasket/internal/config"
	"streetbasket/internal/database"
	"streetbasket/internal/filter"
	custommiddleware "streetbasket/internal/middleware"
	"streetbasket/internal/repository"
	"streetbasket/internal/service"
	"streetbasket/internal/storage"
	"streetbasket/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MetricsNamespace prefixes every exported Prometheus series
const MetricsNamespace = "streetbasket"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router.
// redisClient may be nil, in which case login attempts are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, redisClient *redis.Client, files *storage.Store) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	metrics := custommiddleware.NewMetrics(MetricsNamespace)
	router.Use(metrics.Middleware)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check endpoint
	router.Get("/health", healthHandler(db, redisClient))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Product images are public; identity documents are never served
	imagesPrefix := transport.ImageURLPrefix + storage.ImagesDir + "/"
	router.Handle(imagesPrefix+"*", http.StripPrefix(imagesPrefix, files.Handler(storage.ImagesDir)))

	// Initialize repositories
	sqlDB := db.DB()
	accountRepo := repository.NewAccountRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)
	tx := repository.NewTransactor(sqlDB)

	// Initialize services
	paging := filter.Defaults{PageSize: cfg.Catalog.DefaultPageSize, MaxPageSize: cfg.Catalog.MaxPageSize}
	accountService := service.NewAccountService(accountRepo, refreshTokenRepo, tx, files, service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)
	productService := service.NewProductService(productRepo, tx, files, paging, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, tx, logger)

	// Initialize handlers
	accountHandler := transport.NewAccountHandler(accountService, cfg.Upload.MaxBytes, logger)
	productHandler := transport.NewProductHandler(productService, paging, cfg.Upload.MaxBytes, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	// Register routes
	accountHandler.RegisterRoutes(router, authMiddleware, loginLimiter(cfg, redisClient, logger))
	productHandler.RegisterRoutes(router, authMiddleware)
	orderHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func loginLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	if redisClient == nil || cfg.RateLimit.LoginRequests <= 0 {
		logger.Warn("Login rate limiting disabled")
		return func(next http.Handler) http.Handler { return next }
	}
	return custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.LoginRequests,
		Window:            cfg.RateLimit.LoginWindow,
		KeyPrefix:         "ratelimit:login",
	}, logger)
}

// healthHandler reports 503 when the database is unreachable.
// A failing redis only degrades the report since rate limiting fails open.
func healthHandler(db *database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := map[string]interface{}{"status": "ok"}
		status := http.StatusOK

		dbHealth := db.Health()
		report["database"] = dbHealth
		if dbHealth["status"] != "up" {
			report["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				report["redis"] = "down"
				if status == http.StatusOK {
					report["status"] = "degraded"
				}
			} else {
				report["redis"] = "up"
			}
		}

		custommiddleware.RespondWithJSON(w, status, report)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
