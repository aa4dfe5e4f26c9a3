package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// skipIfNoDocker skips the test if Docker is not available
func skipIfNoDocker(t *testing.T) {
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		t.Skip("Skipping Docker-based tests in CI environment")
	}
}

// setupMongoTestContainer sets up a MongoDB test container and returns the storage instance and cleanup function
func setupMongoTestContainer(t *testing.T) (*MongoStorage, func()) {
	skipIfNoDocker(t)

	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("Failed to start MongoDB container (Docker may not be available): %v", err)
	}

	connectionString, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to get MongoDB connection string: %v", err)
	}

	mongoStorage, err := NewMongoStorage(connectionString, "test_daily_planner")
	if err != nil {
		mongoContainer.Terminate(ctx)
		t.Skipf("Failed to create MongoDB storage: %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		mongoStorage.Close()
		mongoContainer.Terminate(ctx)
	}

	return mongoStorage, cleanup
}

func TestMongoStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	runStorageTests(t, mongoStorage)
}

func TestMongoStorageIndexesAreIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping MongoDB integration test in short mode")
	}

	mongoStorage, cleanup := setupMongoTestContainer(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mongoStorage.createIndexes(ctx); err != nil {
		t.Fatalf("createIndexes twice failed: %v", err)
	}
}
