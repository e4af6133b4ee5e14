package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/config"
	"github.com/voiceforge/api/internal/engine"
	"github.com/voiceforge/api/internal/handler"
	"github.com/voiceforge/api/internal/middleware"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/store"
	ws "github.com/voiceforge/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open database
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	jobStore := store.NewJobStore(db)
	voiceStore := store.NewVoiceStore(db)
	uploadStore := store.NewUploadStore(db)

	// Initialize Redis client (rate limiting only; optional)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
		}
	}

	// Object storage: R2 when configured, local filesystem otherwise
	var storage client.StorageClient
	storageMode := "local"
	if r2, err := client.NewR2Client(&cfg.R2); err == nil {
		storage = r2
		storageMode = "r2"
		log.Printf("Using R2 object storage (bucket %s)", cfg.R2.BucketName)
	} else {
		local, err := client.NewLocalStorage(cfg.Storage.Dir)
		if err != nil {
			log.Fatalf("Failed to init local storage: %v", err)
		}
		storage = local
		log.Printf("Using local object storage at %s", cfg.Storage.Dir)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Initialize services
	fileService := service.NewFileService(storage)
	voiceService := service.NewVoiceService(voiceStore, uploadStore)
	uploadService := service.NewUploadService(storage, uploadStore, voiceStore, cfg.Storage.MaxUploadBytes)

	// Initialize execution engine
	ttsClient := client.NewIndexTTSClient(&cfg.Engine)
	eng := engine.New(engine.Options{
		Jobs:            jobStore,
		Voices:          voiceStore,
		Uploads:         uploadStore,
		Synth:           ttsClient,
		Blobs:           fileService,
		Notifier:        hub,
		MaxAttempts:     cfg.Engine.MaxAttempts,
		DispatchTimeout: time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
		RetryDelay:      time.Duration(cfg.Engine.RetryDelaySeconds) * time.Second,
	})

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	// Re-admit jobs left queued by a previous process, then start the worker
	if err := eng.Requeue(engineCtx); err != nil {
		log.Fatalf("Failed to reload queued jobs: %v", err)
	}
	go eng.Run(engineCtx)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(eng)
	queueHandler := handler.NewQueueHandler(eng)
	voiceHandler := handler.NewVoiceHandler(voiceService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	audioHandler := handler.NewAudioHandler(fileService)
	wsHandler := handler.NewWebSocketHandler(eng, hub)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	authenticate := authMiddleware.Authenticate()
	if cfg.Gateway.Enabled {
		authenticate = middleware.GatewayAuthMiddleware()
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1024*1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Liveness and health check
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   "voiceforge-api",
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"storage": storageMode,
			"services": fiber.Map{
				"engine": cfg.Engine.BaseURL != "",
				"redis":  redisClient != nil,
				"auth":   cfg.JWT.Secret != "",
			},
		})
	})

	// API routes
	api := app.Group("/api", authenticate)

	// Job routes
	jobs := api.Group("/tts/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Post("/:id/cancel", jobHandler.Cancel)
	jobs.Post("/:id/retry", jobHandler.Retry)

	// Queue routes
	api.Get("/queue/status", queueHandler.Status)

	// Voice routes
	voices := api.Group("/voices")
	voices.Post("/", voiceHandler.Create)
	voices.Get("/", voiceHandler.List)
	voices.Get("/:id", voiceHandler.Get)
	voices.Delete("/:id", voiceHandler.Delete)

	// Upload routes
	uploads := api.Group("/uploads")
	uploads.Post("/", rateLimiter.UploadsLimit(cfg.RateLimit.UploadsPerHour), uploadHandler.Create)
	uploads.Get("/", uploadHandler.List)
	uploads.Get("/:id", uploadHandler.Get)
	uploads.Delete("/:id", uploadHandler.Delete)

	// Result audio
	api.Get("/audio/:audioId", audioHandler.Get)

	// WebSocket routes
	app.Get("/ws/jobs/:jobId", wsHandler.Upgrade(), wsHandler.Serve())

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopEngine()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
