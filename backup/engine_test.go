package backup_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/cloudbackup/backup"
	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/encryption"
	"github.com/stupid-simple/cloudbackup/fileutils"
	"github.com/stupid-simple/cloudbackup/storage"
)

func TestEngine_Success(t *testing.T) {
	provider := newMemProvider()
	env := newTestEnv(t, fixedFactory(provider))
	ctx := context.Background()
	src := writeSource(t, map[string]string{
		"a.txt":     strings.Repeat("compressible ", 100),
		"sub/b.txt": strings.Repeat("more text ", 100),
	})
	job := env.createJob(t, src)

	run, err := env.svc.RunNow(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, database.RunSuccess, run.Status)
	assert.Equal(t, 2, run.Files)
	require.NotNil(t, run.EndedAt)
	require.NotNil(t, run.CompressionRatio)
	assert.Less(t, *run.CompressionRatio, 1.0)
	assert.True(t, strings.HasPrefix(run.ObjectPath, "backups/docs/nightly-docs-"))
	assert.True(t, strings.HasSuffix(run.ObjectPath, ".zip"))

	data, err := provider.Get(ctx, run.ObjectPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), run.Size)
	assert.Equal(t, fileutils.Checksum(data), run.Checksum)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := []string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, names)

	got, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobActive, got.Status)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, job.NextRun.UTC(), got.NextRun.UTC())
}

func TestEngine_StoredWithoutCompression(t *testing.T) {
	provider := newMemProvider()
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "aaaa"}), func(j *database.BackupJob) {
		j.Compression = false
	})

	run, err := env.svc.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RunSuccess, run.Status)
	assert.Nil(t, run.CompressionRatio)
}

func TestEngine_EncryptedRestore(t *testing.T) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	provider := newMemProvider()
	env := newTestEnv(t, fixedFactory(provider), backup.WithEncryptionKey(key))
	ctx := context.Background()
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "secret", "d/b.txt": "other"}), func(j *database.BackupJob) {
		j.Encryption = true
	})

	run, err := env.svc.RunNow(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(run.ObjectPath, ".zip"+encryption.Extension))

	sealed, err := provider.Get(ctx, run.ObjectPath)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	dest := filepath.Join(t.TempDir(), "restore")
	stats, err := env.svc.Restore(ctx, backup.RestoreParams{RunID: run.ID, DestDir: dest})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Restored)

	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "secret", string(content))
	content, err = os.ReadFile(filepath.Join(dest, "d", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "other", string(content))

	// Existing identical files are left alone.
	stats, err = env.svc.Restore(ctx, backup.RestoreParams{RunID: run.ID, DestDir: dest})
	require.NoError(t, err)
	assert.Zero(t, stats.Restored)
	assert.Equal(t, 2, stats.Skipped)
}

func TestEngine_RestoreRejectsFailedRun(t *testing.T) {
	env := newTestEnv(t, fixedFactory(newMemProvider()))
	ctx := context.Background()
	job := env.createJob(t, filepath.Join(t.TempDir(), "missing"))

	run, err := env.svc.RunNow(ctx, job.ID)
	require.Error(t, err)

	_, err = env.svc.Restore(ctx, backup.RestoreParams{RunID: run.ID, DestDir: t.TempDir()})
	assert.ErrorIs(t, err, backup.ErrNotRestorable)
}

func TestEngine_EncryptionWithoutKey(t *testing.T) {
	provider := newMemProvider()
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}), func(j *database.BackupJob) {
		j.Encryption = true
	})

	run, err := env.svc.RunNow(context.Background(), job.ID)
	assert.ErrorIs(t, err, encryption.ErrNoKey)
	require.NotNil(t, run)
	assert.Equal(t, database.RunFailed, run.Status)
	assert.Contains(t, run.Message, "no encryption key")
	assert.Zero(t, provider.putCount())
}

func TestEngine_SourceFailures(t *testing.T) {
	for name, src := range map[string]func(t *testing.T) string{
		"missing": func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
		"empty":   func(t *testing.T) string { return t.TempDir() },
	} {
		t.Run(name, func(t *testing.T) {
			provider := newMemProvider()
			env := newTestEnv(t, fixedFactory(provider))
			ctx := context.Background()
			job := env.createJob(t, src(t))

			run, err := env.svc.RunNow(ctx, job.ID)
			require.Error(t, err)
			require.NotNil(t, run)
			assert.Equal(t, database.RunFailed, run.Status)
			assert.NotEmpty(t, run.Message)
			require.NotNil(t, run.EndedAt)
			assert.Zero(t, provider.putCount())

			got, err := env.svc.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, database.JobActive, got.Status)
			assert.Nil(t, got.LastRun)
		})
	}
}

func TestEngine_RetriesNetworkFailures(t *testing.T) {
	provider := newMemProvider()
	provider.putErrs = []error{networkError("put"), networkError("put")}
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RunSuccess, run.Status)
	assert.Equal(t, 3, provider.putCount())
	assert.Len(t, provider.keys(), 1)
}

func TestEngine_RetriesExhausted(t *testing.T) {
	provider := newMemProvider()
	provider.putErrs = []error{networkError("put"), networkError("put"), networkError("put"), networkError("put")}
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(context.Background(), job.ID)
	assert.ErrorIs(t, err, storage.ErrNetwork)
	assert.Equal(t, database.RunFailed, run.Status)
	assert.Equal(t, 3, provider.putCount())
	assert.Empty(t, provider.keys())
}

func TestEngine_AuthFailureNotRetried(t *testing.T) {
	provider := newMemProvider()
	provider.putErrs = []error{authError("put")}
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(context.Background(), job.ID)
	assert.ErrorIs(t, err, storage.ErrAuthFailure)
	assert.Equal(t, database.RunFailed, run.Status)
	assert.Contains(t, run.Message, "credentials rejected")
	assert.Equal(t, 1, provider.putCount())
}

func TestEngine_PanicIsRecordedAndReleased(t *testing.T) {
	provider := newMemProvider()
	provider.panicOnPut = true
	env := newTestEnv(t, fixedFactory(provider))
	ctx := context.Background()
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(ctx, job.ID)
	require.Error(t, err)
	assert.Equal(t, database.RunFailed, run.Status)
	assert.Contains(t, run.Message, "panicked")

	running, queued, _ := env.svc.SlotStats()
	assert.Zero(t, running)
	assert.Zero(t, queued)

	got, err := env.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.JobActive, got.Status)

	// The slot and the job are free again.
	provider.mu.Lock()
	provider.panicOnPut = false
	provider.mu.Unlock()
	run, err = env.svc.RunNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RunSuccess, run.Status)
}

func TestEngine_HistoryRowIsTerminalOnce(t *testing.T) {
	env := newTestEnv(t, fixedFactory(newMemProvider()))
	ctx := context.Background()
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(ctx, job.ID)
	require.NoError(t, err)

	run.Status = database.RunFailed
	err = env.db.FinishRun(ctx, run)
	assert.ErrorIs(t, err, database.ErrRunFinished)

	runs, err := env.svc.ListHistory(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.RunSuccess, runs[0].Status)
}

func TestEngine_EnforcesRetentionAfterSuccess(t *testing.T) {
	provider := newMemProvider()
	provider.seed("backups/docs/old.zip", "old", 10*24*time.Hour)
	provider.seed("backups/docs/recent.zip", "recent", 3*24*time.Hour)
	provider.seed("elsewhere/old.zip", "untouched", 100*24*time.Hour)
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}), func(j *database.BackupJob) {
		j.RetentionDays = 7
	})

	run, err := env.svc.RunNow(context.Background(), job.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"backups/docs/recent.zip",
		run.ObjectPath,
		"elsewhere/old.zip",
	}, provider.keys())
}

func TestEngine_RetentionFailureKeepsRunSuccessful(t *testing.T) {
	provider := newMemProvider()
	provider.seed("backups/docs/old.zip", "old", 40*24*time.Hour)
	provider.deleteErrs["backups/docs/old.zip"] = networkError("delete")
	env := newTestEnv(t, fixedFactory(provider))
	job := env.createJob(t, writeSource(t, map[string]string{"a.txt": "a"}))

	run, err := env.svc.RunNow(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RunSuccess, run.Status)
	assert.Contains(t, provider.keys(), "backups/docs/old.zip")
}

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "photos-20260102T020405Z.zip", backup.ObjectName("photos", at))
	assert.Equal(t, "my-docs-v2-20260102T020405Z.zip", backup.ObjectName("my docs/v2", at))
	assert.Equal(t, "backup-20260102T020405Z.zip", backup.ObjectName("///", at))
}
