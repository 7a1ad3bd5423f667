package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/annazecevic/catalog-service/config"
	"github.com/annazecevic/catalog-service/handler"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/middleware"
	"github.com/annazecevic/catalog-service/repository"
	"github.com/annazecevic/catalog-service/service"
	"github.com/annazecevic/catalog-service/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(logger.Config{
		ServiceName: "catalog-service",
		Environment: cfg.Environment,
		LogFilePath: cfg.LogFilePath,
		HMACKey:     cfg.LogHMACKey,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})

	logger.Info(logger.EventServiceStartup, "Catalog service starting", logger.Fields(
		"port", cfg.ServerPort,
		"environment", cfg.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal(logger.EventDBError, "Failed to connect to MongoDB", logger.Fields("error", err.Error()))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error(logger.EventDBError, "Error disconnecting from MongoDB", logger.Fields("error", err.Error()))
		}
	}()

	logger.Info(logger.EventDBConnection, "Connected to MongoDB successfully", logger.Fields(
		"database", cfg.MongoDatabase,
	))

	backend, err := storage.ConnectHDFS(cfg.HDFSNamenode, cfg.HDFSBaseDir, 10)
	if err != nil {
		logger.Fatal(logger.EventBlobError, "Failed to connect to HDFS after retries", logger.Fields("error", err.Error()))
	}
	defer backend.Close()

	store, err := storage.NewStore(backend, storage.Options{
		PublicURL:    cfg.BlobPublicURL,
		DurableHost:  cfg.BlobDurableHost,
		FetchTimeout: cfg.BlobFetchTimeout,
		FetchRate:    cfg.BlobFetchRate,
		FetchBurst:   cfg.BlobFetchBurst,
	})
	if err != nil {
		logger.Fatal(logger.EventGeneral, "Invalid blob store configuration", logger.Fields("error", err.Error()))
	}

	repo := repository.NewCatalogRepository(client.Database(cfg.MongoDatabase))
	catalogHandler := handler.NewCatalogHandler(
		service.NewCatalogService(repo, store),
		service.NewImportService(repo, store),
		store,
		handler.Options{UploadDir: cfg.UploadDir, MaxUploadSize: cfg.MaxUploadSize},
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.SecurityHeaders())

	catalogHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(logger.EventServiceStartup, "Server starting", logger.Fields("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(logger.EventGeneral, "Failed to start server", logger.Fields("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logger.Info(logger.EventServiceShutdown, "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(logger.EventServiceShutdown, "Forced shutdown", logger.Fields("error", err.Error()))
	}
}
