package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// setupTestDB connects to the test MongoDB instance and returns an isolated
// database plus a cleanup function.
func setupTestDB(t *testing.T, prefix string) (*mongo.Database, func()) {
	t.Helper()

	mongoURI := os.Getenv("TEST_MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())

	client, err := mongo.Connect(options.Client().ApplyURI(mongoURI).SetConnectTimeout(10 * time.Second))
	require.NoError(t, err, "mongo.Connect failed")

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		t.Skipf("Skipping MongoDB integration test: ping failed: %v (URI: %s)", err, mongoURI)
	}

	db := client.Database(dbName)
	cleanup := func() {
		ctx := context.Background()
		if err := db.Drop(ctx); err != nil {
			t.Logf("Warning: failed to drop database %s: %v", dbName, err)
		}
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Warning: failed to disconnect test client: %v", err)
		}
	}
	return db, cleanup
}

func TestDailyUserRepository_Integration(t *testing.T) {
	if os.Getenv("TEST_MONGO_URI") == "" && os.Getenv("CI") != "" {
		t.Skip("Skipping MongoDB integration tests: TEST_MONGO_URI not set in CI.")
	}

	db, cleanup := setupTestDB(t, "test_presence_daily_users")
	defer cleanup()

	ctx := context.Background()
	repo, err := NewDailyUserRepositoryMongo(ctx, db)
	require.NoError(t, err)

	t.Run("SameIdentitySameDayStoresOnce", func(t *testing.T) {
		inserted, err := repo.RecordIfNew(ctx, "idA", "2025-06-01")
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = repo.RecordIfNew(ctx, "idA", "2025-06-01")
		require.NoError(t, err)
		assert.False(t, inserted)

		count, err := repo.CountByDay(ctx, "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("SameIdentityTwoDaysStoresTwice", func(t *testing.T) {
		_, err := repo.RecordIfNew(ctx, "idB", "2025-06-01")
		require.NoError(t, err)
		_, err = repo.RecordIfNew(ctx, "idB", "2025-06-02")
		require.NoError(t, err)

		days, err := repo.Days(ctx)
		require.NoError(t, err)
		assert.Contains(t, days, "2025-06-01")
		assert.Contains(t, days, "2025-06-02")
	})

	t.Run("ConcurrentRecordsStoreExactlyOne", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				//nolint:errcheck // racing upserts may surface duplicate keys
				repo.RecordIfNew(ctx, "idRace", "2025-06-03")
			}()
		}
		wg.Wait()

		count, err := repo.CountByDay(ctx, "2025-06-03")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("DistinctClientIDs", func(t *testing.T) {
		total, err := repo.CountDistinctClientIDs(ctx)
		require.NoError(t, err)
		// idA, idB, idRace from the subtests above.
		assert.Equal(t, int64(3), total)
	})
}
