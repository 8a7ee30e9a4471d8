// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the database, session store, model registry,
// auth services, and handlers are all constructed and wired here, in one
// place. main.go stays minimal — load config, call New, call Start.
package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/sakif/watchlist/internal/auth"
	"github.com/sakif/watchlist/internal/handler"
	"github.com/sakif/watchlist/internal/middleware"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/registry"
	sqliteRepo "github.com/sakif/watchlist/internal/repository/sqlite"
	"github.com/sakif/watchlist/internal/service"
	"github.com/sakif/watchlist/internal/watchlist"
)

// Config holds server configuration, loaded from the environment in main.go.
type Config struct {
	Port          int
	DBPath        string
	JWTSecret     string
	SessionSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the resources that must be released on
// shutdown (the database connection).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → repositories → registry accessors, auth service,
//	watchlist.Deps → handlers → routes
//
// Handlers never touch the database directly; the watchlist manager and the
// auth service sit between them and storage.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the model registry and the
// watchlist dependencies, and mounts all routes.
//
// ROUTE STRUCTURE:
//
//	GET    /auth/github/login      → redirect to GitHub
//	GET    /auth/github/callback   → complete OAuth, set JWT cookie
//	POST   /auth/register          → create local account
//	POST   /auth/login             → local account login
//	POST   /auth/logout            → clear JWT cookie
//	GET    /api/me                 → current user            [auth required]
//	GET    /api/watchlist          → prune + grouped entries [optional auth]
//	POST   /api/watchlist/toggle   → toggle one object       [optional auth]
//	POST   /api/watchlist/remove   → remove one object       [optional auth]
//	POST   /api/watchlist/remove_model → clear one model     [optional auth]
//	POST   /api/watchlist/add      → bulk add                [optional auth]
//	PUT    /api/watchlist/notes    → update entry notes      [auth required]
//	GET    /api/people             → annotated listing       [optional auth]
//	GET    /api/companies          → annotated listing       [optional auth]
//	POST   /api/people, /api/companies and DELETE .../{id}   → demo data
//
// "Optional auth" is what makes the watchlist polymorphic: a valid JWT
// selects the durable backend, anything else falls back to the session
// backend, and the routes themselves never branch.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// The session secret can be any passphrase; hash it to derive a fixed
	// 32-byte signing key. It must stay consistent across restarts or every
	// anonymous watchlist evaporates.
	key := sha256.Sum256([]byte(s.config.SessionSecret))
	sessionStore := sessions.NewCookieStore(key[:])
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60, // 30 days
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	// Register the watchable models. The registry is read-only after this
	// point; the repr expressions mirror what the Go types render so stored
	// snapshots and live fetches agree.
	reg := registry.New()
	reg.Register(registry.NewSQLAccessor(s.db.Conn(), model.PersonLabel, "people", "id",
		"CASE WHEN first_name = '' THEN last_name ELSE first_name || ' ' || last_name END"))
	reg.Register(registry.NewSQLAccessor(s.db.Conn(), model.CompanyLabel, "companies", "id", "name"))

	deps := watchlist.Deps{
		Repo:     s.db,
		Registry: reg,
		Sessions: sessionStore,
		Logger:   s.logger,
	}

	github := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
	)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	authHandler := handler.NewAuthHandler(github, authService, s.logger)

	modelURLs := map[string]string{
		model.PersonLabel:  "/api/people",
		model.CompanyLabel: "/api/companies",
	}
	watchlistHandler := handler.NewWatchlistHandler(deps, s.db, modelURLs, s.logger)
	directoryHandler := handler.NewDirectoryHandler(s.db, deps, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Put("/watchlist/notes", watchlistHandler.HandleUpdateNotes)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/watchlist", watchlistHandler.HandleOverview)
			r.Post("/watchlist/toggle", watchlistHandler.HandleToggle)
			r.Post("/watchlist/remove", watchlistHandler.HandleRemove)
			r.Post("/watchlist/remove_model", watchlistHandler.HandleRemoveModel)
			r.Post("/watchlist/add", watchlistHandler.HandleBulkAdd)

			r.Get("/people", directoryHandler.HandleListPeople)
			r.Post("/people", directoryHandler.HandleCreatePerson)
			r.Delete("/people/{id}", directoryHandler.HandleDeletePerson)
			r.Get("/companies", directoryHandler.HandleListCompanies)
			r.Post("/companies", directoryHandler.HandleCreateCompany)
			r.Delete("/companies/{id}", directoryHandler.HandleDeleteCompany)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30s to
// finish, close the database (flushes the WAL, releases the file lock).
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
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
