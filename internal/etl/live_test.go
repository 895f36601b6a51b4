package etl

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BartekS5/paysync/pkg/database"
	"github.com/BartekS5/paysync/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// liveBackend is a warehouse reachable through an environment variable.
// Tests against it are skipped when the variable is unset.
type liveBackend struct {
	env   string
	open  func(t *testing.T, conn string) Warehouse
	count func(t *testing.T, wh Warehouse, table string) int
	drop  func(wh Warehouse, table string)
}

func sqlBackend(env string, dialect *Dialect) liveBackend {
	return liveBackend{
		env: env,
		open: func(t *testing.T, conn string) Warehouse {
			db, err := database.ConnectSQL(context.Background(), dialect.Driver, conn)
			require.NoError(t, err)
			return NewSQLWarehouse(db, dialect)
		},
		count: func(t *testing.T, wh Warehouse, table string) int {
			return countRows(t, wh.(*SQLWarehouse), table)
		},
		drop: func(wh Warehouse, table string) {
			w := wh.(*SQLWarehouse)
			_, _ = w.DB.Exec("DROP TABLE IF EXISTS " + w.Dialect.Quote(table))
		},
	}
}

var liveBackends = map[string]liveBackend{
	"sqlserver": sqlBackend("PAYSYNC_TEST_SQLSERVER", SQLServer),
	"postgres":  sqlBackend("PAYSYNC_TEST_POSTGRES", Postgres),
	"mongo": {
		env: "PAYSYNC_TEST_MONGO",
		open: func(t *testing.T, conn string) Warehouse {
			client, err := database.ConnectMongo(context.Background(), conn)
			require.NoError(t, err)
			return NewMongoWarehouse(client.Database("paysync_test"))
		},
		count: func(t *testing.T, wh Warehouse, table string) int {
			n, err := wh.(*MongoWarehouse).DB.Collection(table).CountDocuments(context.Background(), bson.M{})
			require.NoError(t, err)
			return int(n)
		},
		drop: func(wh Warehouse, table string) {
			_ = wh.(*MongoWarehouse).DB.Collection(table).Drop(context.Background())
		},
	},
}

func TestLiveWarehouseConformance(t *testing.T) {
	for name, backend := range liveBackends {
		t.Run(name, func(t *testing.T) {
			conn := os.Getenv(backend.env)
			if conn == "" {
				t.Skipf("%s not set", backend.env)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			wh := backend.open(t, conn)
			defer wh.Close()

			res := testResource(t, chargeSpecJSON)
			res.Table = "charge_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
			t.Cleanup(func() {
				for _, table := range []string{res.Table, res.StagingTable(), res.Table + "_merge"} {
					backend.drop(wh, table)
				}
			})

			_, _, err := wh.MaxTimestamp(ctx, res.Table, "created")
			require.ErrorIs(t, err, ErrTableNotFound)

			latest := time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)
			records := NewTransformer().Transform(res, []models.RawRecord{
				charge("ch_1", 100, date(2021, 7, 1)),
				charge("ch_2", 200, latest),
			})

			loader := NewLoader(wh)
			for i := 0; i < 2; i++ {
				written, err := loader.LoadAndMerge(ctx, res, records)
				require.NoError(t, err)
				assert.Equal(t, int64(2), written)
				assert.Equal(t, 2, backend.count(t, wh, res.Table))
				assert.Equal(t, 0, backend.count(t, wh, res.StagingTable()))
			}

			ts, found, err := wh.MaxTimestamp(ctx, res.Table, "created")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, latest, ts)
		})
	}
}
