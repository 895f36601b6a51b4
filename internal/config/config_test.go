package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"STRIPE_API_KEY", "API_KEY", "STRIPE_API_URL", "STRIPE_MAX_NETWORK_RETRIES",
		"WAREHOUSE", "BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT", "DATASET",
		"SQL_CONNECTION_STRING", "MONGO_CONNECTION_STRING", "MONGO_DATABASE",
		"EPOCH", "SCHEMA_DIR", "LOG_FILE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "sk_test_123")
	t.Setenv("BIGQUERY_PROJECT", "proj")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", cfg.StripeAPIKey)
	assert.Equal(t, WarehouseBigQuery, cfg.Warehouse)
	assert.Equal(t, "stripe", cfg.Dataset)
	assert.Equal(t, int64(2), cfg.StripeMaxRetries)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Epoch)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing key":      {"BIGQUERY_PROJECT": "p"},
		"missing project":  {"STRIPE_API_KEY": "k"},
		"missing sql conn": {"STRIPE_API_KEY": "k", "WAREHOUSE": "postgres"},
		"missing mongo":    {"STRIPE_API_KEY": "k", "WAREHOUSE": "mongo"},
		"bad warehouse":    {"STRIPE_API_KEY": "k", "WAREHOUSE": "redshift"},
		"bad epoch":        {"STRIPE_API_KEY": "k", "BIGQUERY_PROJECT": "p", "EPOCH": "2021/01/01"},
		"bad retries":      {"STRIPE_API_KEY": "k", "BIGQUERY_PROJECT": "p", "STRIPE_MAX_NETWORK_RETRIES": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigSQLite(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRIPE_API_KEY", "k")
	t.Setenv("WAREHOUSE", "SQLite")
	t.Setenv("SQL_CONNECTION_STRING", "file:paysync.db")
	t.Setenv("EPOCH", "2020-06-01")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, WarehouseSQLite, cfg.Warehouse)
	assert.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Epoch)
}

func TestLoadResourceSpecs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.json", `{"name":"Payout","kind":"payouts","schema":[{"name":"id","type":"STRING"},{"name":"created","type":"TIMESTAMP"}]}`)
	write("a.json", `{"name":"Refund","table":"Refunds","kind":"refunds","schema":[{"name":"id","type":"STRING"},{"name":"created","type":"TIMESTAMP"}]}`)
	write("notes.txt", "ignored")

	specs, err := LoadResourceSpecs(dir)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Refund", specs[0].Name)
	assert.Equal(t, "Refunds", specs[0].Table)
	assert.Equal(t, "Payout", specs[1].Name)

	write("c.json", `{"name":"Broken","kind":"x","schema":[]}`)
	_, err = LoadResourceSpecs(dir)
	assert.ErrorContains(t, err, "c.json")

	_, err = LoadResourceSpecs(t.TempDir())
	assert.Error(t, err)
}
