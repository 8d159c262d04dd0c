package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stupid-simple/cloudbackup/fileutils"
)

func TestVerifyWritable(t *testing.T) {
	dir := t.TempDir()
	if err := fileutils.VerifyWritable(dir); err != nil {
		t.Fatalf("expected writable dir, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp file to be removed, found %d entries", len(entries))
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, data, 0600); err != nil {
		t.Fatal(err)
	}
	if err := fileutils.VerifyWritable(file); err == nil {
		t.Error("expected error for a regular file")
	}
	if err := fileutils.VerifyWritable(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing dir")
	}
}
