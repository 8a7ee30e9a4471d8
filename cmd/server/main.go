// Package main is the entry point for the watchlist server.
//
// main stays minimal: read configuration from the environment, create the
// logger, hand both to internal/server. All actual logic lives in the
// imported packages.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/watchlist/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// DB_PATH overrides the default for production deployments,
	// e.g. DB_PATH=/var/lib/watchlist/prod.db
	dbPath := "data/watchlist.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET signs access tokens, SESSION_SECRET signs the anonymous
	// watchlist cookie. Generate them with: openssl rand -hex 32
	//
	// If either is unset we fall back to an ephemeral random value so the
	// server still starts for local development — but every restart then
	// invalidates all tokens and anonymous watchlists.
	jwtSecret := secretFromEnv("JWT_SECRET", logger)
	sessionSecret := secretFromEnv("SESSION_SECRET", logger)

	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		JWTSecret:          jwtSecret,
		SessionSecret:      sessionSecret,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// secretFromEnv reads a signing secret from the environment, generating an
// ephemeral one when unset.
func secretFromEnv(name string, logger *slog.Logger) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Error("failed to generate ephemeral secret", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Warn("secret not set, using an ephemeral value — tokens and sessions will not survive a restart",
		slog.String("env", name))
	return hex.EncodeToString(buf)
}
