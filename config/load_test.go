package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stupid-simple/cloudbackup/config"
)

var goodConfig = `
{
	"tick_interval": "30s",
	"timezone": "UTC",
	"network_timeout": "10s",
	"encryption_key_file": "/etc/cloudbackup/key",
	"upload": {
		"max_attempts": 5,
		"initial_backoff": "500ms",
		"max_backoff": "1m"
	},
	"max_archive_size": "2GB",
	"metrics_addr": ":9090",
	"settings": {
		"max_concurrent_jobs": 4,
		"retention_days": 14,
		"compression_level": 9
	}
}
`

var badConfig = `
[]
`

func writeConfig(t *testing.T, content string) string {
	testFile := filepath.Join(t.TempDir(), "test.json")
	err := os.WriteFile(testFile, []byte(content), 0600)
	if err != nil {
		t.Fatal(err)
	}
	return testFile
}

func TestLoad_Good(t *testing.T) {
	cfg, err := config.LoadFromFile(writeConfig(t, goodConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TickInterval.Std() != 30*time.Second {
		t.Errorf("expected tick interval 30s, got %s", cfg.TickInterval.Std())
	}
	if cfg.NetworkTimeout.Std() != 10*time.Second {
		t.Errorf("expected network timeout 10s, got %s", cfg.NetworkTimeout.Std())
	}
	if cfg.Upload.MaxAttempts != 5 || cfg.Upload.InitialBackoff.Std() != 500*time.Millisecond {
		t.Errorf("unexpected upload policy %+v", cfg.Upload)
	}
	if cfg.MaxArchiveSize.Size != 2_000_000_000 {
		t.Errorf("expected max archive size 2GB, got %d", cfg.MaxArchiveSize.Size)
	}
	if cfg.Settings == nil || cfg.Settings.MaxConcurrentJobs != 4 || cfg.Settings.CompressionLevel != 9 {
		t.Errorf("unexpected settings %+v", cfg.Settings)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFromFile(writeConfig(t, `{"metrics_addr": "localhost:9100"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickInterval.Std() != time.Minute {
		t.Errorf("expected default tick interval, got %s", cfg.TickInterval.Std())
	}
	if cfg.Upload.MaxAttempts != 3 {
		t.Errorf("expected 3 upload attempts, got %d", cfg.Upload.MaxAttempts)
	}
	if cfg.Settings != nil {
		t.Errorf("expected no settings block, got %+v", cfg.Settings)
	}

	empty, err := config.LoadFromFile("")
	if err != nil {
		t.Fatal(err)
	}
	if empty.NetworkTimeout.Std() != 30*time.Second {
		t.Errorf("expected default network timeout, got %s", empty.NetworkTimeout.Std())
	}
	loc, err := empty.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoad_Bad(t *testing.T) {
	_, err := config.LoadFromFile(writeConfig(t, badConfig))
	if err == nil {
		t.Error("expected error")
	}
}

func TestLoad_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"duration":          `{"tick_interval": "soon"}`,
		"size":              `{"max_archive_size": "lots"}`,
		"compression level": `{"settings": {"max_concurrent_jobs": 1, "retention_days": 0, "compression_level": 12}}`,
		"concurrency":       `{"settings": {"max_concurrent_jobs": 0, "retention_days": 0, "compression_level": 6}}`,
		"metrics address":   `{"metrics_addr": "not an address"}`,
		"timezone":          `{"timezone": "Mars/Olympus_Mons"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadFromFile(writeConfig(t, content))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	_, err := config.LoadFromFile("unexisting")
	if err == nil {
		t.Error("expected error")
	}
}

func TestLoad_Unreadable(t *testing.T) {
	_, err := config.LoadFromFile(t.TempDir())
	if err == nil {
		t.Error("expected error")
	}
}
