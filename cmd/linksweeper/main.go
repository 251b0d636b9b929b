// The linksweeper Lambda consumes the items table stream and removes the
// refcode constraint and relationship mirror records of deleted items.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/jacentio/specimen/config"
	"github.com/jacentio/specimen/logger"
	"github.com/jacentio/specimen/store"
	"github.com/jacentio/specimen/stream"
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

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatal("Failed to load AWS configuration", zap.Error(err))
	}

	st := store.New(dynamodb.NewFromConfig(awsCfg), store.Config{
		ItemsTable:       cfg.ItemsTable,
		LinksTable:       cfg.LinksTable,
		ConstraintsTable: cfg.ConstraintsTable,
		CollectionsTable: cfg.CollectionsTable,
		UsersTable:       cfg.UsersTable,
		LinkShards:       cfg.LinkShards,
	})

	handler := stream.NewHandler(st)
	lambda.Start(handler.HandleItemRemoval)
}
