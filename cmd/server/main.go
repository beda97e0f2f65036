package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/driftline/driftline-backend/internal/cache"
	"github.com/driftline/driftline-backend/internal/handlers"
	"github.com/driftline/driftline-backend/internal/hub"
	"github.com/driftline/driftline-backend/internal/middleware"
	"github.com/driftline/driftline-backend/internal/repository"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/driftline/driftline-backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Driftline Relay",
		// Support image uploads up to the processing cap + overhead.
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	presenceCache := cache.NewPresenceCache(redisCache)
	threadCache := cache.NewThreadCache(redisCache)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	// The hub owns the connection registry; everything that needs live
	// delivery receives it explicitly.
	connectionHub := hub.NewHub(presenceCache)
	defer connectionHub.Close()

	// Initialize services
	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo, messageRepo)
	messageService := service.NewMessageService(messageRepo, threadCache)
	groupService := service.NewGroupService(groupRepo)
	relayService := service.NewRelayService(messageRepo, groupRepo, userRepo, connectionHub, threadCache)

	// Initialize S3/MinIO storage (best-effort; media endpoints are only
	// mounted when it is configured)
	var s3Store *storage.S3Storage
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: S3 storage not configured: %v", err)
	} else if st, err := storage.NewS3Storage(cfg); err != nil {
		log.Printf("WARNING: Failed to initialize S3 storage: %v", err)
	} else {
		s3Store = st
		log.Printf("S3 storage initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(connectionHub, relayService, userService, groupService, presenceCache)
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	messageHandler := handlers.NewMessageHandler(relayService, messageService)
	groupHandler := handlers.NewGroupHandler(groupService)

	// Public routes
	api := app.Group("/api", middleware.OriginAllowed())
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired())
	protected.Get("/users", userHandler.ListPeers)
	protected.Get("/users/me", userHandler.GetCurrentUser)
	protected.Get("/messages", messageHandler.GetThread)
	protected.Post("/messages", messageHandler.SendMessage)
	protected.Post("/messages/:id/seen", messageHandler.MarkSeen)
	protected.Post("/conversations/:peer_id/seen", messageHandler.MarkThreadSeen)

	// Group routes
	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups", groupHandler.GetMyGroups)
	protected.Post("/groups/:id/join", groupHandler.JoinGroup)
	protected.Post("/groups/:id/leave", groupHandler.LeaveGroup)
	protected.Get("/groups/:id/members", groupHandler.GetGroupMembers)
	protected.Get("/groups/:id/messages", messageHandler.GetGroupThread)

	// Media routes
	if s3Store != nil {
		mediaHandler := handlers.NewMediaHandler(s3Store, userService)
		protected.Post("/media/images", mediaHandler.UploadImage)
		protected.Post("/media/avatar", mediaHandler.UploadAvatar)
		protected.Get("/media/*", mediaHandler.GetObject)
	}

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Driftline relay is running",
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
