package fileutils

import (
	"fmt"
	"os"
)

// Returns nil if dirPath is a directory and is writable.
func VerifyWritable(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}

	fil, err := os.CreateTemp(dirPath, ".cloudbackup-*")
	if err != nil {
		return err
	}
	if err = fil.Close(); err != nil {
		return err
	}
	return os.Remove(fil.Name())
}
