// Package server is the composition root: it opens storage, builds the
// services and handlers, mounts routes and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/handler"
	"github.com/sakif/cookshare/internal/middleware"
	sqliteRepo "github.com/sakif/cookshare/internal/repository/sqlite"
	"github.com/sakif/cookshare/internal/service"
)

// Config holds everything main reads from the environment.
type Config struct {
	Port   int
	DBPath string

	JWTSecret     string
	SecureCookies bool

	// GitHub login is mounted only when all three are set.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	CORSOrigins    []string
	WriteRateLimit float64 // requests per second per IP; 0 disables
}

func (c Config) githubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != "" && c.GitHubCallbackURL != ""
}

// Server owns the router and the database handle, and closes the latter on
// shutdown.
type Server struct {
	router http.Handler
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every layer. Use ":memory:" as DBPath
// for tests.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("configuring tokens: %w", err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.router = s.routes(tokens)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// DB exposes the store to callers that share the process, such as tests.
func (s *Server) DB() *sqliteRepo.DB {
	return s.db
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// routes mounts:
//
//	GET    /healthz
//	POST   /auth/register | /auth/login | /auth/logout
//	GET    /auth/github/login | /auth/github/callback   (when configured)
//	GET    /api/me
//	GET    /api/recipes
//	POST   /api/recipes
//	GET    /api/recipes/{id}
//	PUT    /api/recipes/{id}
//	DELETE /api/recipes/{id}
func (s *Server) routes(tokens *auth.TokenService) http.Handler {
	var github *auth.GitHubProvider
	if s.config.githubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	recipeService := service.NewRecipeService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)

	recipeHandler := handler.NewRecipeHandler(recipeService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.config.SecureCookies, s.logger)
	healthHandler := handler.NewHealthHandler(s.db)

	limiter := middleware.NewRateLimiter(s.config.WriteRateLimit)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))

	r.Get("/healthz", healthHandler.HandleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Use(limiter.Middleware)

		r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.HandleList)
			r.Post("/", recipeHandler.HandleCreate)
			r.Get("/{id}", recipeHandler.HandleGet)
			r.Put("/{id}", recipeHandler.HandleUpdate)
			r.Delete("/{id}", recipeHandler.HandleDelete)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("github", s.config.githubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
