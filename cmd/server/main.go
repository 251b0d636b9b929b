package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/api"
	"github.com/jacentio/specimen/config"
	"github.com/jacentio/specimen/creation"
	"github.com/jacentio/specimen/graph"
	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/refcode"
	"github.com/jacentio/specimen/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting API server...")

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatal("Failed to load AWS configuration", zap.Error(err))
	}
	client := dynamodb.NewFromConfig(awsCfg)

	st := store.New(client, store.Config{
		ItemsTable:       cfg.ItemsTable,
		LinksTable:       cfg.LinksTable,
		ConstraintsTable: cfg.ConstraintsTable,
		CollectionsTable: cfg.CollectionsTable,
		UsersTable:       cfg.UsersTable,
		LinkShards:       cfg.LinkShards,
	})

	alloc, err := refcode.NewAllocator(cfg.IdentifierPrefix, st)
	if err != nil {
		log.Fatal("Failed to create refcode allocator", zap.Error(err))
	}

	engine := creation.NewEngine(st, alloc, creation.Config{
		IdentifierPrefix:   cfg.IdentifierPrefix,
		MaxBatchCreateSize: cfg.MaxBatchCreateSize,
		Testing:            cfg.Testing,
	})
	builder := graph.NewBuilder(st)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewServer(st, engine, builder).Router()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("addr", cfg.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
