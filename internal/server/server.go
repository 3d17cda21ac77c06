// Package server wires the HTTP surfaces: server-rendered pages behind a
// session cookie and the JSON API behind bearer tokens.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/credential"
	"warbler/internal/database"
	"warbler/internal/middleware"
	"warbler/internal/repository"
	"warbler/internal/service"
	"warbler/web"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *session.Store
	views          *html.Engine

	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository

	userService    *service.UserService
	followService  *service.FollowService
	messageService *service.MessageService
}

// NewServer connects to the database and Redis and builds a Server on them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; sessions fall back to process memory without it.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("warbler"),
		userRepo:       repository.NewUserRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		messageRepo:    repository.NewMessageRepository(db),
		likeRepo:       repository.NewLikeRepository(db),
	}

	s.userService = service.NewUserService(s.userRepo, credential.NewHasher(cfg.BcryptCost))
	s.followService = service.NewFollowService(s.followRepo, s.userRepo)
	s.messageService = service.NewMessageService(s.messageRepo, s.likeRepo)
	s.sessions = newSessionStore(cfg, redisClient)

	return s, nil
}

func newSessionStore(cfg *config.Config, rdb *redis.Client) *session.Store {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	sc := session.Config{
		Expiration:     ttl,
		KeyLookup:      "cookie:" + sessionCookieName,
		CookieSecure:   cfg.SessionSecure,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	}
	if rdb != nil {
		sc.Storage = cache.NewSessionStore(rdb)
	}
	return session.New(sc)
}

// FiberConfig returns the app configuration: embedded views, the base layout
// and an error handler that answers JSON under /api and HTML elsewhere.
func (s *Server) FiberConfig() fiber.Config {
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	engine.AddFunc("date", formatDate)
	s.views = engine

	return fiber.Config{
		AppName:      "Warbler",
		Views:        engine,
		ViewsLayout:  baseLayout,
		ErrorHandler: s.handleError,
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Propagate request id into the request context for the logger
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Profile and header images are arbitrary remote URLs.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	app.Use(middleware.StructuredLogger())
	app.Use(middleware.RequestTracing())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5000,http://127.0.0.1:5000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || isStaticRequest(c)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
// API, health and static routes are registered before the session-aware web
// group so they never touch the session store.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(web.Static()),
		MaxAge: 3600,
	}))

	s.setupAPIRoutes(app)
	s.setupWebRoutes(app)
}

// loginLimit throttles password guessing. With Redis configured an outage
// blocks logins rather than lifting the limit.
func (s *Server) loginLimit() fiber.Handler {
	policy := middleware.FailOpen
	if s.redis != nil {
		policy = middleware.FailClosed
	}
	return middleware.RateLimitWithPolicy(s.redis, 10, 5*time.Minute, policy, "login")
}

func (s *Server) setupAPIRoutes(app *fiber.App) {
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.APISignup)
	auth.Post("/login", s.loginLimit(), s.APILogin)
	auth.Post("/logout", s.AuthRequired(), s.APILogout)

	users := api.Group("/users")
	users.Get("/", s.APIListUsers)
	users.Put("/me", s.AuthRequired(), s.APIUpdateMe)
	users.Delete("/me", s.AuthRequired(), s.APIDeleteMe)
	// Specific /:id/:resource routes before the generic /:id route
	users.Get("/:id/following", s.AuthRequired(), s.APIFollowing)
	users.Get("/:id/followers", s.AuthRequired(), s.APIFollowers)
	users.Get("/:id/likes", s.AuthRequired(), s.APILikes)
	users.Post("/:id/follow", s.AuthRequired(), s.APIFollow)
	users.Delete("/:id/follow", s.AuthRequired(), s.APIUnfollow)
	users.Get("/:id", s.APIGetUser)

	messages := api.Group("/messages")
	messages.Get("/", s.AuthRequired(), s.APITimeline)
	messages.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, 30, time.Minute, "create_message"), s.APICreateMessage)
	messages.Post("/:id/like", s.AuthRequired(), s.APIToggleLike)
	messages.Delete("/:id", s.AuthRequired(), s.APIDeleteMessage)
	messages.Get("/:id", s.APIGetMessage)
}

func (s *Server) setupWebRoutes(app *fiber.App) {
	pages := app.Group("", s.LoadCurrentUser())
	gate := s.RequireUser()

	pages.Get("/", s.Home)
	pages.Get("/signup", s.SignupPage)
	pages.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.SignupSubmit)
	pages.Get("/login", s.LoginPage)
	pages.Post("/login", s.loginLimit(), s.LoginSubmit)
	pages.Get("/logout", s.Logout)

	users := pages.Group("/users")
	users.Get("/", s.UsersIndex)
	// Fixed paths before /:id
	users.Get("/profile", gate, s.ProfileEditPage)
	users.Post("/profile", gate, s.ProfileEditSubmit)
	users.Post("/delete", gate, s.DeleteAccount)
	users.Post("/follow/:id", gate, s.FollowUser)
	users.Post("/stop-following/:id", gate, s.StopFollowing)
	users.Post("/add_like/:id", gate, s.AddLike)
	users.Get("/:id/following", gate, s.UserFollowing)
	users.Get("/:id/followers", gate, s.UserFollowers)
	users.Get("/:id/likes", gate, s.UserLikes)
	users.Get("/:id", s.UserShow)

	messages := pages.Group("/messages")
	messages.Get("/new", gate, s.MessageNewPage)
	messages.Post("/new", gate, middleware.RateLimit(s.redis, 30, time.Minute, "create_message"), s.MessageNewSubmit)
	messages.Post("/:id/delete", gate, s.MessageDelete)
	messages.Get("/:id", s.MessageShow)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the configured Fiber app without listening.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		app := fiber.New(s.FiberConfig())
		s.SetupMiddleware(app)
		s.SetupRoutes(app)
		s.app = app
	}
	return s.app
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
