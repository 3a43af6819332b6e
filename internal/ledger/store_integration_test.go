//go:build integration

package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safetyrelay/internal/constants"
	"safetyrelay/pkg/migrations"
	"safetyrelay/pkg/models"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("relay"),
		postgres.WithUsername("relay"),
		postgres.WithPassword("relay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.MigratePostgres(db))
	return db
}

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("relay_test")
	require.NoError(t, migrations.EnsureMongoIndexes(ctx, db, constants.VehicleRoutesCollection))
	return db
}

func TestStore_Integration(t *testing.T) {
	store := Compose(
		NewPostgresDeliveredRepository(setupPostgres(t)),
		NewMongoProcessedRepository(setupMongo(t)),
	)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ok, err := store.IsDelivered(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := models.DeliveryRecord{EventID: "evt-1", Type: "harsh_brake", SentAt: now}
	require.NoError(t, store.MarkDelivered(ctx, rec))
	require.NoError(t, store.MarkDelivered(ctx, rec))

	ok, err = store.IsDelivered(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	audit := models.ProcessedRecord{EventID: "evt-1", Source: models.SourceSafety, Outcome: "delivered", DecidedAt: now}
	require.NoError(t, store.LogProcessed(ctx, audit))
	audit.Mode = "text"
	require.NoError(t, store.LogProcessed(ctx, audit))

	ok, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.PurgeDeliveredBefore(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.PurgeProcessedBefore(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
