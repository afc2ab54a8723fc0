package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"looplib/internal/auth"
	"looplib/internal/config"
	"looplib/internal/ingest"
	"looplib/internal/library"
	"looplib/internal/profile"

	"looplib/internal/api/handlers"
	"looplib/internal/api/middleware"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Auth     *auth.Provider
	Profiles profile.Store
	Library  *library.Service
	Uploader *ingest.Uploader
	Logger   *slog.Logger
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	router *gin.Engine

	mu   sync.Mutex
	http *http.Server
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger))
	if cfg.Upload.MaxFileSizeMB > 0 {
		router.MaxMultipartMemory = cfg.Upload.MaxFileSizeMB << 20
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	// "Authorization" must be allowed so the frontend can send the JWT
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Range"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Range", "Accept-Ranges"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.Auth)
	profileHandler := handlers.NewProfileHandler(s.deps.Auth, s.deps.Profiles)
	libraryHandler := handlers.NewLibraryHandler(s.deps.Library)
	uploadHandler := handlers.NewUploadHandler(s.deps.Uploader)

	limiter := middleware.NewIPRateLimiter(s.cfg.Auth.RateLimit, s.cfg.Auth.RateBurst)
	requireAuth := middleware.RequireAuth(s.deps.Auth.Tokens())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "looplib"})
	})

	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// PUBLIC ROUTES (No Token Required)
		// ==========================================
		public := v1.Group("/auth")
		public.Use(middleware.RateLimit(limiter))
		{
			public.POST("/register", authHandler.Register)
			public.POST("/login", authHandler.Login)
		}

		// ==========================================
		// PROTECTED ROUTES (JWT Token Required)
		// ==========================================
		protected := v1.Group("/")
		protected.Use(requireAuth)
		{
			protected.POST("/auth/logout", authHandler.Logout)

			// --- PROFILE (the signed-in user)
			protected.GET("/profile", profileHandler.GetProfile)
			protected.PUT("/profile", profileHandler.UpdateProfile)
			protected.GET("/profile/files", libraryHandler.ListOwnFiles)
			protected.DELETE("/profile/files/:name", libraryHandler.DeleteOwnFile)

			// --- UPLOAD
			protected.POST("/upload/analyze", uploadHandler.Analyze)
			protected.POST("/upload", uploadHandler.Upload)

			// --- USER LIBRARIES (any signed-in user may browse)
			protected.GET("/users/:uid", profileHandler.GetUser)
			protected.GET("/users/:uid/files", libraryHandler.ListUserFiles)
			protected.GET("/users/:uid/files/:name/stream", libraryHandler.StreamFile)
			protected.DELETE("/users/:uid/files/:name", middleware.RequireSelf("uid"), libraryHandler.DeleteUserFile)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
