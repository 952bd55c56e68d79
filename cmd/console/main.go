package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"student-registry/internal/config"
	"student-registry/internal/console"
	"student-registry/internal/logging"
	"student-registry/internal/student"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Logs go to stderr at warn level so stdout stays reserved for the
	// menu frames.
	logging.SetupWriter(os.Stderr, "warn", cfg.Logging.Format)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnString())
	if err != nil {
		slog.Error("failed to parse database config", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	store := student.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	menu := console.New(store, os.Stdin, os.Stdout)
	if err := menu.Run(ctx); err != nil {
		slog.Error("menu stopped", "error", err)
		os.Exit(1)
	}
}
