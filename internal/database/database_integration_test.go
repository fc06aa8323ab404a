//go:build integration

package database

import (
	"context"
	"os"
	"testing"

	"dailyquiz/internal/config"
	"dailyquiz/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_AppliesMigrations_Integration(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	dm := NewManager(observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))
	db, err := dm.InitDB(databaseURL)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, table := range []string{"questions", "daily_assignments", "quiz_attempts", "question_stats"} {
		var exists bool
		err := db.QueryRowContext(context.Background(),
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	// second run is a no-op
	require.NoError(t, dm.RunMigrations(context.Background(), databaseURL))

	version, dirty, err := dm.MigrationStatus(databaseURL)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))
}
