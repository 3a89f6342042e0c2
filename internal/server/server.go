package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inkwell-press/apiserver/config"
	"github.com/inkwell-press/apiserver/internal/auth"
	"github.com/inkwell-press/apiserver/internal/db"
	"github.com/inkwell-press/apiserver/internal/events"
	"github.com/inkwell-press/apiserver/internal/handlers"
	"github.com/inkwell-press/apiserver/internal/services"
	"github.com/inkwell-press/apiserver/internal/storage"
	"github.com/inkwell-press/apiserver/internal/store"
)

// Server wraps the HTTP server, router and shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	storage    *storage.Storage
	publisher  *events.Publisher
	logger     *slog.Logger
}

// New constructs a Server with its full dependency graph wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.Default()

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if objectStorage != nil {
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			logger.Warn("attachment bucket not reachable at startup", "error", err)
		}
	}

	publisher, err := events.NewFromConfig(ctx, cfg.Broker)
	if err != nil {
		if objectStorage != nil {
			_ = objectStorage.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, userRepo, publisher, logger)

	var attachmentService *services.AttachmentService
	if objectStorage != nil {
		attachmentService = services.NewAttachmentService(attachmentRepo, postRepo, objectStorage, logger)
	}

	authMiddleware := handlers.RequireAuth(tokens, userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Healthz)
	router.Get("/healthz", handlers.Healthz)
	router.Group(func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, logger)
	})
	router.Route("/post", func(r chi.Router) {
		handlers.PostRouter(r, postService, attachmentService, cfg.MaxUploadBytes, authMiddleware, logger)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		storage:    objectStorage,
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases shared resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
