// Package relay assembles and runs the flux-relay server: config
// validation, infrastructure (redis, database), the translation
// pipeline, and the HTTP surface.
package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/api"
	"github.com/fluxtranslate/flux-relay/internal/config"
	"github.com/fluxtranslate/flux-relay/internal/models"
	"github.com/fluxtranslate/flux-relay/internal/services/cache"
	"github.com/fluxtranslate/flux-relay/internal/services/circuitbreaker"
	"github.com/fluxtranslate/flux-relay/internal/services/database"
	"github.com/fluxtranslate/flux-relay/internal/services/pipeline"
	"github.com/fluxtranslate/flux-relay/internal/services/providers"
	"github.com/fluxtranslate/flux-relay/internal/services/request"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Relay is one flux-relay server instance.
type Relay struct {
	config *config.Config
	app    *fiber.App
	redis  *redis.Client
	db     *database.DB
}

// New creates a Relay from a loaded configuration. cfg must not be nil.
func New(cfg *config.Config) *Relay {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create one")
	}
	return &Relay{config: cfg}
}

// Run starts the relay and blocks until shutdown.
func (r *Relay) Run() error {
	if err := r.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(r.config)

	port := r.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	r.app = createFiberApp(r.config)

	redisClient, err := createRedisClient(r.config)
	if err != nil {
		return err
	}
	r.redis = redisClient
	if r.redis != nil {
		defer func() {
			if err := r.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	db, err := createDatabase(r.config)
	if err != nil {
		return err
	}
	r.db = db
	if r.db != nil {
		defer func() {
			if err := r.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}()
	}

	setupMiddleware(r.app, r.config)

	if err := setupRoutes(r.app, r.config, r.redis, r.db); err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	r.app.Get("/", welcomeHandler())

	fmt.Printf("flux-relay starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", r.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := r.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- r.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "flux-relay v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "flux-relay",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent, X-Request-ID",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

// createRedisClient connects to redis when the circuit breaker needs
// it. Breakers are skipped entirely when redis is not configured.
func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	redisURL := ""
	if cfg.CircuitBreaker.Enabled && cfg.CircuitBreaker.RedisURL != "" {
		redisURL = cfg.CircuitBreaker.RedisURL
	}

	if redisURL == "" {
		fiberlog.Info("Redis not configured - circuit breakers disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)
	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

// createDatabase opens the cache persistence database when one is
// configured. Without it the translation cache is memory-only.
func createDatabase(cfg *config.Config) (*database.DB, error) {
	if cfg.Cache.Database == nil {
		fiberlog.Info("Database not configured - translation cache is memory-only")
		return nil, nil
	}

	db, err := database.New(*cfg.Cache.Database)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	fiberlog.Infof("Database connected (%s)", db.DriverName())
	return db, nil
}

func setupRoutes(app *fiber.App, cfg *config.Config, redisClient *redis.Client, db *database.DB) error {
	store := cache.NewStore(cfg.Cache.Max(), db)
	if db != nil {
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Load(loadCtx); err != nil {
			return fmt.Errorf("cache load failed: %w", err)
		}
		fiberlog.Infof("Translation cache loaded, %d entries", store.Len())
	}

	semantic, err := cache.NewSemanticStore(cfg.Cache.Semantic)
	if err != nil {
		return fmt.Errorf("semantic cache initialization failed: %w", err)
	}

	var breakers map[models.ProviderID]*circuitbreaker.CircuitBreaker
	if redisClient != nil && cfg.CircuitBreaker.Enabled {
		breakers = make(map[models.ProviderID]*circuitbreaker.CircuitBreaker)
		for _, provider := range models.AllProviders() {
			breakers[provider] = circuitbreaker.NewForProvider(redisClient, provider, cfg.CircuitBreaker)
		}
	}

	registry := providers.NewRegistry()
	pipe := pipeline.New(cfg, store, semantic, registry, breakers)
	reqSvc := request.NewService()

	translateHandler := api.NewTranslateHandler(pipe, reqSvc)
	providersHandler := api.NewProvidersHandler()
	cacheHandler := api.NewCacheHandler(store, reqSvc)
	healthHandler := api.NewHealthHandler(redisClient, db)

	app.Get("/health", healthHandler.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/translate/stream", translateHandler.Stream)
	v1.Post("/translate", translateHandler.Translate)
	v1.Get("/providers", providersHandler.List)
	v1.Get("/providers/:id/models", providersHandler.Models)
	v1.Get("/cache", cacheHandler.Stats)
	v1.Delete("/cache", cacheHandler.Clear)

	return nil
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "flux-relay",
			"status":  "running",
		})
	}
}
