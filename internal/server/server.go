package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/cache"
	"storefront/internal/cartcookie"
	"storefront/internal/config"
	"storefront/internal/consentcookie"
	"storefront/internal/database"
	"storefront/internal/events"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	publisher events.Publisher
}

// NewRedisClient builds the client shared by the rate limiter and the
// product cache
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client, publisher events.Publisher) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(s.routes(), "storefront"),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	cfg := s.config
	dev := !cfg.IsProduction()

	router := chi.NewRouter()

	// Basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, dev))
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger, dev))

	// Identity is resolved before rate limiting so signed-in users are
	// counted per account
	optionalAuth := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, s.logger)
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, s.logger)
	router.Use(optionalAuth)

	router.Get("/health", s.health)

	db := s.db.DB()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)
	consentRepo := repository.NewConsentRepository(db)

	// Initialize services
	var productCache cache.ProductCache
	if s.redis != nil {
		productCache = cache.NewRedisProductCache(s.redis, cfg.Cache.ProductTTL)
	}
	catalogService := service.NewCatalogService(productRepo, categoryRepo, productCache, s.logger)
	userService := service.NewUserService(userRepo, refreshTokenRepo, cartRepo, cfg.JWT, s.logger)
	cartService := service.NewCartService(cartRepo, catalogService, s.logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, s.publisher, s.logger)
	reviewService := service.NewReviewService(reviewRepo, catalogService, s.logger)
	wishlistService := service.NewWishlistService(wishlistRepo, catalogService, s.logger)
	consentService := service.NewConsentService(consentRepo, cfg.Consent.PolicyVersion, s.logger)

	// Initialize handlers
	cartCookie := cartcookie.Options{
		Name:    cfg.Cart.CookieName,
		MaxAge:  cfg.Cart.CookieTTL(),
		Secure:  !dev,
		MaxSize: cfg.Cart.MaxCookieSize,
	}
	userHandler := transport.NewUserHandler(userService, s.logger, !dev, cartCookie)
	catalogHandler := transport.NewCatalogHandler(catalogService, s.logger, dev)
	cartHandler := transport.NewCartHandler(cartService, cartCookie, s.logger, dev)
	orderHandler := transport.NewOrderHandler(orderService, s.logger, dev)
	reviewHandler := transport.NewReviewHandler(reviewService, s.logger, dev)
	wishlistHandler := transport.NewWishlistHandler(wishlistService, s.logger, dev)
	consentCookie := consentcookie.Options{
		Name:   cfg.Consent.CookieName,
		MaxAge: cfg.Consent.CookieTTL(),
		Secure: !dev,
	}
	consentHandler := transport.NewConsentHandler(consentService, consentCookie, s.logger, dev)

	// Register routes
	router.Group(func(r chi.Router) {
		if s.redis != nil {
			r.Use(custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.AuthRequests,
				Window:            cfg.RateLimit.AuthWindow,
				KeyPrefix:         "ratelimit:auth",
			}, s.logger))
		}
		userHandler.RegisterRoutes(r, authMiddleware)
	})

	router.Group(func(r chi.Router) {
		if s.redis != nil {
			r.Use(custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.GeneralRequests,
				Window:            cfg.RateLimit.GeneralWindow,
				KeyPrefix:         "ratelimit:api",
			}, s.logger))
		}
		catalogHandler.RegisterRoutes(r, optionalAuth, authMiddleware)
		cartHandler.RegisterRoutes(r, optionalAuth)
		orderHandler.RegisterRoutes(r, authMiddleware)
		reviewHandler.RegisterRoutes(r, authMiddleware)
		wishlistHandler.RegisterRoutes(r, authMiddleware)
		consentHandler.RegisterRoutes(r, optionalAuth)
	})

	return router
}

// health reports the database pool and, when configured, redis
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := map[string]interface{}{"status": "ok"}

	dbHealth := s.db.Health()
	report["database"] = dbHealth
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		report["status"] = "degraded"
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// Redis only backs the cache and rate limits; both fail open.
			report["redis"] = map[string]string{"status": "down", "error": err.Error()}
		} else {
			report["redis"] = map[string]string{"status": "up"}
		}
	}

	custommiddleware.RespondWithJSON(w, status, report)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

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

	s.logger.Sync()
	return nil
}
