package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Integration coverage for the postgres repository. Runs only when
// NEXUS_TEST_DATABASE_URL points at a disposable database.
func openTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("NEXUS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NEXUS_TEST_DATABASE_URL not set")
	}
	repo, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresUpsertRoundTrip(t *testing.T) {
	repo := openTestPostgres(t)
	ctx := context.Background()

	token := "rt-" + time.Now().Format("150405.000000000")
	rec := sampleRecord(token, "p1")
	rec.Scopes = []string{"https://www.googleapis.com/auth/cloud-platform"}
	require.NoError(t, repo.Upsert(ctx, rec))
	require.NotZero(t, rec.ID)

	rec.AccessToken = "rotated"
	require.NoError(t, repo.Upsert(ctx, rec))

	rows, err := repo.LoadActive(ctx)
	require.NoError(t, err)

	var found bool
	for _, row := range rows {
		if row.RefreshToken != token {
			continue
		}
		found = true
		require.Equal(t, rec.ID, row.ID)
		require.Equal(t, "rotated", row.AccessToken)
		require.Equal(t, rec.Scopes, row.Scopes)
		require.True(t, row.Status)
	}
	require.True(t, found)

	require.NoError(t, repo.UpdateStatus(ctx, rec.ID, false))
	rows, err = repo.LoadActive(ctx)
	require.NoError(t, err)
	for _, row := range rows {
		if row.ID == rec.ID {
			require.False(t, row.Status)
		}
	}
}

func TestPostgresUpdateStatusUnknownID(t *testing.T) {
	repo := openTestPostgres(t)
	require.Error(t, repo.UpdateStatus(context.Background(), -1, false))
}
