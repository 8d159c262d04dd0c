package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/storage"
)

func TestCreateProvider_Validation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.CreateProvider(ctx, &database.StorageProvider{Name: "x", Variant: "ftp", Config: []byte("{}")})
	assert.ErrorIs(t, err, database.ErrValidation)

	err = db.CreateProvider(ctx, &database.StorageProvider{Variant: "s3", Config: []byte("{}")})
	assert.ErrorIs(t, err, database.ErrValidation)

	providers, err := db.ListProviders(ctx)
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestLoadProvider(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := createTestProvider(t, db)

	creds, err := db.LoadProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.VariantS3, creds.Variant)
	assert.JSONEq(t, `{"bucket":"backups"}`, string(creds.Config))

	_, err = db.LoadProvider(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, database.ErrProviderNotFound)
}

func TestReplaceProviderConfig(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := createTestProvider(t, db)

	require.NoError(t, db.ReplaceProviderConfig(ctx, p.ID, []byte(`{"bucket":"rotated"}`)))

	got, err := db.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bucket":"rotated"}`, string(got.Config))

	assert.ErrorIs(t, db.ReplaceProviderConfig(ctx, "missing", []byte("{}")), storage.ErrNotFound)
	assert.ErrorIs(t, db.ReplaceProviderConfig(ctx, p.ID, nil), database.ErrValidation)
}

func TestDeleteProvider_Referenced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := createTestProvider(t, db)
	job := newTestJob(p.ID)
	require.NoError(t, db.CreateJob(ctx, job))

	assert.ErrorIs(t, db.DeleteProvider(ctx, p.ID), database.ErrReference)

	require.NoError(t, db.DeleteJob(ctx, job.ID))
	require.NoError(t, db.DeleteProvider(ctx, p.ID))
	assert.ErrorIs(t, db.DeleteProvider(ctx, p.ID), storage.ErrNotFound)
}
