package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stupid-simple/cloudbackup/fileutils"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	tmpFilePath := filepath.Join(dir, "test-file")
	if err := os.WriteFile(tmpFilePath, data, 0600); err != nil {
		t.Fatalf("Failed to create temporary file: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{
			name:     "existing file",
			path:     tmpFilePath,
			expected: true,
		},
		{
			name:     "existing directory",
			path:     dir,
			expected: true,
		},
		{
			name:     "non-existent file",
			path:     filepath.Join(dir, "non-existent-file.txt"),
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := fileutils.Exists(tc.path)
			if result != tc.expected {
				t.Errorf("Expected Exists(%q) = %v, got %v", tc.path, tc.expected, result)
			}
		})
	}
}
