// Package config loads application settings from the environment and
// per-resource schema files from disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BartekS5/paysync/pkg/utils"
)

// Warehouse backends.
const (
	WarehouseBigQuery  = "bigquery"
	WarehouseSQLServer = "sqlserver"
	WarehousePostgres  = "postgres"
	WarehouseSQLite    = "sqlite"
	WarehouseMongo     = "mongo"
)

// DefaultEpoch is the lower window bound used when the warehouse holds no
// rows for a resource yet.
var DefaultEpoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// Config holds all configuration for the application, typically loaded
// from environment variables (populated from .env in main.go).
type Config struct {
	StripeAPIKey     string
	StripeAPIURL     string
	StripeMaxRetries int64
	Warehouse        string
	BigQueryProject  string
	Dataset          string
	SQLConnString    string
	MongoConnString  string
	MongoDatabase    string
	Epoch            time.Time
	SchemaDir        string
	LogFile          string
	LogLevel         string
}

// LoadConfig reads the environment and validates that the connection
// settings required by the selected warehouse are present.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StripeAPIKey:     firstEnv("STRIPE_API_KEY", "API_KEY"),
		StripeAPIURL:     os.Getenv("STRIPE_API_URL"),
		StripeMaxRetries: 2,
		Warehouse:        strings.ToLower(getEnv("WAREHOUSE", WarehouseBigQuery)),
		BigQueryProject:  firstEnv("BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT"),
		Dataset:          getEnv("DATASET", "stripe"),
		SQLConnString:    os.Getenv("SQL_CONNECTION_STRING"),
		MongoConnString:  os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "stripe"),
		Epoch:            DefaultEpoch,
		SchemaDir:        os.Getenv("SCHEMA_DIR"),
		LogFile:          os.Getenv("LOG_FILE"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if cfg.StripeAPIKey == "" {
		return nil, errors.New("STRIPE_API_KEY environment variable not set")
	}

	if v := os.Getenv("STRIPE_MAX_NETWORK_RETRIES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid STRIPE_MAX_NETWORK_RETRIES %q", v)
		}
		cfg.StripeMaxRetries = n
	}

	if v := os.Getenv("EPOCH"); v != "" {
		epoch, err := utils.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("EPOCH: %w", err)
		}
		cfg.Epoch = epoch
	}

	switch cfg.Warehouse {
	case WarehouseBigQuery:
		if cfg.BigQueryProject == "" {
			return nil, errors.New("BIGQUERY_PROJECT environment variable not set")
		}
	case WarehouseSQLServer, WarehousePostgres, WarehouseSQLite:
		if cfg.SQLConnString == "" {
			return nil, errors.New("SQL_CONNECTION_STRING environment variable not set")
		}
	case WarehouseMongo:
		if cfg.MongoConnString == "" {
			return nil, errors.New("MONGO_CONNECTION_STRING environment variable not set")
		}
	default:
		return nil, fmt.Errorf("unknown WAREHOUSE %q", cfg.Warehouse)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
