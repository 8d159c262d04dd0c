package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/database"
)

func TestSettings_DefaultsAndLatestWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.DefaultSettings(), s)

	_, err = db.SaveSettings(ctx, database.Settings{MaxConcurrentJobs: 4, RetentionDays: 7, CompressionLevel: 9})
	require.NoError(t, err)
	_, err = db.SaveSettings(ctx, database.Settings{MaxConcurrentJobs: 1, RetentionDays: 0, CompressionLevel: 1})
	require.NoError(t, err)

	s, err = db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.MaxConcurrentJobs)
	assert.Equal(t, 0, s.RetentionDays)
	assert.Equal(t, 1, s.CompressionLevel)
}

func TestSaveSettings_Validation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, s := range []database.Settings{
		{MaxConcurrentJobs: 0, RetentionDays: 1, CompressionLevel: 6},
		{MaxConcurrentJobs: 1, RetentionDays: -1, CompressionLevel: 6},
		{MaxConcurrentJobs: 1, RetentionDays: 1, CompressionLevel: 10},
	} {
		_, err := db.SaveSettings(ctx, s)
		assert.ErrorIs(t, err, database.ErrValidation)
	}

	s, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.DefaultSettings(), s)
}
