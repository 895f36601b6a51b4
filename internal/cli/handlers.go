package cli

import (
	"context"
	"fmt"

	"github.com/BartekS5/paysync/internal/catalog"
	"github.com/BartekS5/paysync/internal/config"
	"github.com/BartekS5/paysync/internal/etl"
	"github.com/BartekS5/paysync/pkg/database"
	"github.com/BartekS5/paysync/pkg/logger"
)

// app is everything a command needs to run pipelines.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	warehouse etl.Warehouse
	pipeline  *etl.Pipeline
}

// newApp checks tables against the catalog before any connection is made.
func newApp(ctx context.Context, opts *GlobalOptions, dryRun bool, tables []string) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.SchemaDir != "" {
		cfg.SchemaDir = opts.SchemaDir
	}
	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.SchemaDir)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if _, err := cat.Lookup(t); err != nil {
			return nil, err
		}
	}

	wh, err := openWarehouse(ctx, cfg)
	if err != nil {
		return nil, err
	}

	api := etl.NewStripeAPI(cfg.StripeAPIKey, cfg.StripeAPIURL, cfg.StripeMaxRetries)
	pipeline := etl.NewPipeline(cat, etl.NewStripeSource(api), wh, cfg.Epoch, dryRun)

	logger.Infof("Using %s warehouse, %d resources available", cfg.Warehouse, len(cat.Names()))
	return &app{cfg: cfg, catalog: cat, warehouse: wh, pipeline: pipeline}, nil
}

func (a *app) Close() {
	if err := a.warehouse.Close(); err != nil {
		logger.Warnf("closing warehouse: %v", err)
	}
	logger.Close()
}

func initLogging(cfg *config.Config) error {
	if err := logger.InitLogger(cfg.LogFile, logger.ParseLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	return nil
}

func openWarehouse(ctx context.Context, cfg *config.Config) (etl.Warehouse, error) {
	switch cfg.Warehouse {
	case config.WarehouseBigQuery:
		client, err := database.ConnectBigQuery(ctx, cfg.BigQueryProject)
		if err != nil {
			return nil, err
		}
		return etl.NewBigQueryWarehouse(client, cfg.Dataset), nil
	case config.WarehouseSQLServer, config.WarehousePostgres, config.WarehouseSQLite:
		dialect, err := etl.DialectFor(cfg.Warehouse)
		if err != nil {
			return nil, err
		}
		db, err := database.ConnectSQL(ctx, dialect.Driver, cfg.SQLConnString)
		if err != nil {
			return nil, err
		}
		return etl.NewSQLWarehouse(db, dialect), nil
	case config.WarehouseMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoConnString)
		if err != nil {
			return nil, err
		}
		return etl.NewMongoWarehouse(client.Database(cfg.MongoDatabase)), nil
	}
	return nil, fmt.Errorf("unknown warehouse %q", cfg.Warehouse)
}
