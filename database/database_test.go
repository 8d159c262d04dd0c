package database_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/database"
)

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(":memory:", zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestProvider(t *testing.T, db *database.Database) *database.StorageProvider {
	t.Helper()
	p := &database.StorageProvider{
		Name:    "primary",
		Variant: "s3",
		Config:  []byte(`{"bucket":"backups"}`),
	}
	require.NoError(t, db.CreateProvider(context.Background(), p))
	return p
}

func newTestJob(providerID string) *database.BackupJob {
	return &database.BackupJob{
		Name:              "photos",
		SourcePath:        "/srv/photos",
		StorageProviderID: providerID,
		RemotePath:        "photos",
		Schedule:          "0 * * * *",
		RetentionDays:     7,
	}
}
