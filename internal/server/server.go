// Package server contains the HTTP and WebSocket handlers of the blog.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/featureflags"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Extra request body room for multipart framing around an uploaded image.
const bodyLimitSlack = 1 << 20

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager
	sessions       *middleware.SessionManager
	limiter        *middleware.RateLimiter
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	postService    *service.PostService
	likeService    *service.LikeService
	commentService *service.CommentService
	userService    *service.UserService
	feedService    *service.FeedService
}

// NewServer wires repositories and services on top of an open database and an optional
// Redis client. rdb may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server needs a config and a database")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics("quill"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		sessions:       middleware.NewSessionManager(cfg, rdb),
		limiter:        middleware.NewRateLimiter(rdb, cfg.Env),
	}

	// A nil interface, not a nil *Notifier, keeps services from publishing.
	var publisher service.EventPublisher
	if s.featureFlags.On(featureflags.LiveEvents) {
		s.notifier = notifications.NewNotifier(rdb)
		s.hub = notifications.NewHub()
		publisher = s.notifier
	}

	images := service.NewImageService(cfg)
	postOpts := []service.PostServiceOption{
		service.WithImageStore(images),
		service.WithPageSize(cfg.PostsPerPage),
	}
	if s.featureFlags.On(featureflags.Markdown) {
		postOpts = append(postOpts, service.WithMarkdown(service.NewMarkdownRenderer()))
	}
	if publisher != nil {
		postOpts = append(postOpts, service.WithPublisher(publisher))
	}

	s.postService = service.NewPostService(postRepo, repository.NewTagRepository(db), commentRepo,
		repository.NewImageRepository(db), postOpts...)
	s.likeService = service.NewLikeService(postRepo, repository.NewLikeRepository(db), publisher)
	s.commentService = service.NewCommentService(commentRepo, postRepo, publisher)
	s.userService = service.NewUserService(userRepo, service.WithAvatarStore(images))
	s.feedService = service.NewFeedService(postRepo, cfg)

	s.app = fiber.New(fiber.Config{
		AppName:      "Quill",
		BodyLimit:    int(cfg.ImageMaxUploadBytes) + bodyLimitSlack,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)

	return s, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
	}
	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware that runs for every request.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request and trace ids into the request context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes. Infrastructure routes come first so they are
// served without a database session.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Static("/static", s.config.UploadDir)

	if s.hub != nil {
		app.Get("/ws", s.LiveEventsUpgrade, s.LiveEventsHandler())
	}

	app.Use(s.DBSession())
	app.Use(s.sessions.LoadUser(s.userService.GetUser))

	login := middleware.LoginRequired

	app.Get("/", s.Index)
	app.Get("/create", login, s.CreateForm)
	app.Post("/create", login, s.limiter.Limit("create_post", 10, time.Minute, middleware.FailOpen), s.CreatePost)
	app.Get("/search", s.Search)
	app.Post("/search", s.limiter.Limit("search", 30, time.Minute, middleware.FailOpen), s.Search)
	app.Get("/rss", s.RSS)
	app.Get("/tag/:name", s.ListByTag)

	auth := app.Group("/auth")
	auth.Get("/register", s.RegisterForm)
	auth.Post("/register", s.limiter.Limit("register", 5, 10*time.Minute, middleware.FailClosed), s.Register)
	auth.Get("/login", s.LoginForm)
	auth.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute, middleware.FailClosed), s.Login)
	auth.Get("/logout", s.Logout)
	auth.Post("/logout", s.Logout)
	auth.Post("/avatar", login, s.UpdateAvatar)

	// Numeric ids only, so /create and friends never match.
	app.Get("/:id<int>", s.ShowPost)
	app.Get("/:id<int>/update", login, s.EditForm)
	app.Post("/:id<int>/update", login, s.UpdatePost)
	app.Post("/:id<int>/delete", login, s.DeletePost)
	app.Post("/:id<int>/like", login, s.ToggleLike)
	app.Post("/:id<int>/comment", login, s.limiter.Limit("create_comment", 20, time.Minute, middleware.FailOpen), s.AddComment)
	app.Get("/:id<int>/comments", s.ListComments)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis answer. Redis only degrades
// readiness when it was configured and stopped answering.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := cache.Ping(ctx, s.redis); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"features": s.featureFlags.Snapshot(0),
		"time":     time.Now(),
	})
}

// Start wires live events and listens on the configured port.
func (s *Server) Start() error {
	if err := s.StartLiveEvents(); err != nil {
		return err
	}
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// StartLiveEvents subscribes the hub to the notifier. It is a no-op when live events are off.
func (s *Server) StartLiveEvents() error {
	if s.hub == nil {
		return nil
	}
	return s.hub.StartWiring(s.shutdownCtx, s.notifier)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the event subscription.
	s.shutdownFn()

	var errs []error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := database.Close(s.db); err != nil {
		errs = append(errs, err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
