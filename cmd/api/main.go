package main

import (
	"context"
	"log"

	"github.com/davidrs-dev/jobtrack/internal/config"
	"github.com/davidrs-dev/jobtrack/internal/job"
	"github.com/davidrs-dev/jobtrack/internal/simulator"
	"github.com/davidrs-dev/jobtrack/internal/storage"
	"github.com/davidrs-dev/jobtrack/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync() //nolint:errcheck

	dbCfg, err := storage.LoadConfigFromEnv(ctx)
	if err != nil {
		logger.Fatal("failed to load database config", zap.Error(err))
	}

	db, err := storage.ConnectDB(dbCfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	repo := storage.NewJobRepository(db)
	sim := simulator.New(repo, logger)
	service := job.NewJobService(repo, sim, logger)
	handler := job.NewJobHandler(service)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		cors.Default(),
		middleware.ErrorHandler(),
	)
	handler.RegisterRoutes(router)

	logger.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.String("db_driver", dbCfg.Driver),
	)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
