package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"terrascope/server/config"
	"terrascope/server/internal/api"
	"terrascope/server/internal/database"
	"terrascope/server/internal/geocoding"
	"terrascope/server/internal/ingest"
	"terrascope/server/internal/processor"
	"terrascope/server/internal/queue"
	"terrascope/server/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.WithError(err).Fatal("Failed to create database directory")
		}
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewDatabase(cfg.Database.Path, cfg.Listings.GsPerUSD)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	cacheDir := filepath.Join(os.TempDir(), "terrascope", "geocode_cache")
	geocoder := geocoding.NewGeocoder(logger, cacheDir)

	// Ingest pipeline: feed files -> queue -> batch upsert
	ingestQueue := queue.NewListingQueue(cfg.Ingest.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(db.ORM(), ingestQueue, cfg, logger)
	batchProcessor.Start()
	ingestQueue.Start()
	defer func() {
		ingestQueue.Close()
		batchProcessor.Stop()
	}()

	importer := ingest.NewManager(ingestQueue, cfg.Ingest.FeedDir, cfg.Ingest.MaxBatchSize, logger)

	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
	sched := scheduler.NewScheduler(importer, db, geocoder, interval, logger)
	sched.Start()
	defer sched.Stop()

	if cfg.Scheduler.RunOnStartup {
		go sched.RunAll()
	}

	handler := api.NewHandler(db, cfg, importer, geocoder, logger)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
