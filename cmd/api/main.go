package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"recipehub/internal/api"
	"recipehub/internal/auth"
	"recipehub/internal/config"
	"recipehub/internal/database"
	"recipehub/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logger := newLogger(cfg.API.LogLevel)
	slog.SetDefault(logger)

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("rating_scale", cfg.Policy.RatingScale),
		slog.Bool("comments_one_per_recipe", cfg.Policy.CommentsOnePerRecipe),
	)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		fatal(logger, "init database", err)
	}
	if err := database.Migrate(db); err != nil {
		fatal(logger, "migrate database", err)
	}
	logger.Info("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		fatal(logger, "init minio", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable at startup, rate limiting fails open", slog.Any("error", err))
	}
	cancel()

	authService, err := auth.NewAuthServiceFromFiles(
		cfg.Auth.PrivateKeyPath,
		cfg.Auth.PublicKeyPath,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		fatal(logger, "init auth service", err)
	}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, cfg, db, authService, redisClient, logger, storageClient)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		fatal(logger, "run api server", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
