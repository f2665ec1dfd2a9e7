package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/handler"
	"github.com/serkansmg/SunoApiManager/internal/middleware"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/internal/service"
	"github.com/serkansmg/SunoApiManager/internal/store"
	ws "github.com/serkansmg/SunoApiManager/internal/websocket"
	"github.com/serkansmg/SunoApiManager/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize Suno client
	sunoClient, err := client.NewSunoClient(&cfg.Suno)
	if err != nil {
		log.Fatalf("Failed to create suno client: %v", err)
	}

	// Initialize captcha solver (optional - continues without one)
	var solver *client.CaptchaSolver
	solverClient := client.NewBrowserSolverClient(&cfg.Captcha)
	if solverClient.IsConfigured() {
		solver = client.NewCaptchaSolver(sunoClient, solverClient, time.Duration(cfg.Captcha.SolveTimeout)*time.Second)
		solver.SetUpdateFunc(func(solving bool, message string) {
			hub.BroadcastEvent(model.EventCaptchaUpdate, fiber.Map{
				"solving": solving,
				"message": message,
			})
		})
		sunoClient.SetCaptchaSolver(solver)
	} else {
		log.Println("Info: captcha solver not configured, submissions run tokenless")
	}

	// Initialize silence analyzer (optional)
	var analyzer client.SilenceAnalyzer
	analyzerClient := client.NewAnalyzerClient(&cfg.Analyzer)
	if analyzerClient.IsConfigured() {
		analyzer = analyzerClient
	} else {
		log.Println("Info: silence analyzer not configured, skipping analysis")
	}

	// Authenticate against Suno up front so the first batch doesn't pay
	// the cost. Failure is not fatal: the client retries lazily.
	if err := sunoClient.Init(ctx); err != nil {
		log.Printf("Warning: Suno session init failed: %v", err)
	}

	// Storage and progress tracking
	st := store.NewRedisStore(redisClient)
	tracker := progress.NewTracker(hub)
	go tracker.RunCleanup(ctx, time.Minute)

	// Workers
	generateWorker := worker.NewGenerateWorker(st, sunoClient, hub, cfg.Generation)
	downloadWorker := worker.NewDownloadWorker(st, sunoClient, analyzer, tracker, cfg.Download, cfg.Silence, cfg.Generation.AutoAnalyze)

	// Services
	songService := service.NewSongService(st)
	settingsService := service.NewSettingsService(st)
	downloadService := service.NewDownloadService(st, asynqClient, sunoClient, cfg.Generation)
	pollWorker := worker.NewPollWorker(st, sunoClient, hub, downloadService, cfg.Generation)
	generationService := service.NewGenerationService(st, asynqClient, pollWorker, cfg.Generation)

	if err := settingsService.SeedDefaults(ctx, cfg.Generation, cfg.Download); err != nil {
		log.Printf("Warning: failed to seed settings: %v", err)
	}

	// Handlers
	songHandler := handler.NewSongHandler(songService, validate)
	generationHandler := handler.NewGenerationHandler(generationService, downloadService)
	sunoHandler := handler.NewSunoHandler(sunoClient, validate)
	captchaHandler := handler.NewCaptchaHandler(solver)
	settingsHandler := handler.NewSettingsHandler(settingsService, validate)
	progressHandler := handler.NewProgressHandler(tracker)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
				"suno":     sunoClient.IsInitialized(),
				"captcha":  solver != nil,
				"analyzer": analyzer != nil,
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Song library
	songs := api.Group("/songs")
	songs.Post("/", songHandler.Save)
	songs.Get("/", songHandler.List)
	songs.Get("/stats", songHandler.Stats)
	songs.Post("/retry-failed", songHandler.RetryAllFailed)
	songs.Get("/:id", songHandler.Get)
	songs.Delete("/:id", songHandler.Delete)
	songs.Post("/:id/retry", songHandler.Retry)

	// Generation pipeline
	generation := api.Group("/generation")
	generation.Post("/start", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generationHandler.Start)
	generation.Post("/poll", generationHandler.PollNow)
	generation.Get("/", generationHandler.List)
	generation.Get("/:sunoId", generationHandler.Get)

	// Download pipeline
	download := api.Group("/download", rateLimiter.DownloadLimit(cfg.RateLimit.DownloadPerHour))
	download.Post("/completed", generationHandler.DownloadCompleted)
	download.Post("/history", generationHandler.ImportHistory)
	download.Post("/:sunoId", generationHandler.Download)
	download.Post("/:sunoId/redownload", generationHandler.Redownload)

	// Suno proxy
	suno := api.Group("/suno", rateLimiter.ProxyLimit(cfg.RateLimit.ProxyPerMin))
	suno.Post("/generate", sunoHandler.Generate)
	suno.Post("/custom_generate", sunoHandler.CustomGenerate)
	suno.Post("/extend", sunoHandler.Extend)
	suno.Post("/concat", sunoHandler.Concat)
	suno.Post("/lyrics", sunoHandler.Lyrics)
	suno.Get("/feed", sunoHandler.Feed)
	suno.Get("/clip/:clipId", sunoHandler.Clip)
	suno.Get("/credits", sunoHandler.Credits)
	suno.Get("/billing", sunoHandler.Billing)
	suno.Get("/models", sunoHandler.Models)
	suno.Get("/wav/:clipId", sunoHandler.WavURL)
	suno.Post("/wav/:clipId/convert", sunoHandler.ConvertWAV)

	// Captcha coordination
	captcha := api.Group("/captcha")
	captcha.Get("/status", captchaHandler.Status)
	captcha.Post("/solve", captchaHandler.Solve)
	captcha.Post("/invalidate", captchaHandler.Invalidate)

	// Runtime settings
	settings := api.Group("/settings")
	settings.Get("/", settingsHandler.All)
	settings.Get("/:key", settingsHandler.Get)
	settings.Put("/:key", settingsHandler.Set)

	// Progress
	prog := api.Group("/progress")
	prog.Get("/", progressHandler.Snapshot)
	prog.Get("/:sunoId", progressHandler.Get)
	prog.Get("/:sunoId/stream", progressHandler.Stream)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c)
	}))

	// Background status reconciliation
	go pollWorker.RunLoop(ctx)

	// Start Asynq worker server
	go startWorkerServer(cfg, generateWorker, downloadWorker)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancel()
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

func startWorkerServer(cfg *config.Config, generateWorker *worker.GenerateWorker, downloadWorker *worker.DownloadWorker) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Generation batches are strictly serial; downloads can
			// overlap with them.
			Concurrency: 5,
			Queues: map[string]int{
				"generation": 1,
				"download":   4,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeGenerateBatch, generateWorker.ProcessTask)
	mux.HandleFunc(worker.TaskTypeDownloadClip, downloadWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
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
