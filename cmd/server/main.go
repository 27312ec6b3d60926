// Command server runs the cookshare HTTP API.
//
// Configuration comes from the environment, optionally seeded from a .env
// file in the working directory:
//
//	PORT                 listen port (default 8080)
//	DB_PATH              SQLite file (default data/cookshare.db)
//	JWT_SECRET           token signing key, at least 16 chars (required)
//	COOKIE_SECURE        "true" to mark session cookies Secure
//	GITHUB_CLIENT_ID     enables GitHub login together with the next two
//	GITHUB_CLIENT_SECRET
//	GITHUB_CALLBACK_URL  default http://localhost:PORT/auth/github/callback
//	CORS_ORIGINS         comma-separated allowed origins (default *)
//	WRITE_RATE_LIMIT     writes per second per IP (default 10, 0 disables)
//	LOG_LEVEL            debug|info|warn|error (default info)
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/cookshare/internal/server"
)

func main() {
	envErr := godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("could not read .env file", slog.String("error", envErr.Error()))
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GitHubClientID == "" {
		logger.Info("GITHUB_CLIENT_ID not set, GitHub login disabled")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:               8080,
		DBPath:             envOr("DB_PATH", "data/cookshare.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SecureCookies:      os.Getenv("COOKIE_SECURE") == "true",
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		WriteRateLimit:     10,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("PORT %q is not a valid port", v)
		}
		cfg.Port = port
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}

	cfg.GitHubCallbackURL = envOr("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port))

	for _, o := range strings.Split(envOr("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if v := os.Getenv("WRITE_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return cfg, fmt.Errorf("WRITE_RATE_LIMIT %q must be a non-negative number", v)
		}
		cfg.WriteRateLimit = rps
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
