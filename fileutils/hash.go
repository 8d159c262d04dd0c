package fileutils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
)

// ComputeHash returns the hash of the reader.
// It will read the entire contents of the reader. It will not close the reader.
func ComputeHash(r io.Reader) (uint64, error) {
	hash := xxhash.New()
	_, err := io.Copy(hash, r)
	if err != nil {
		return 0, err
	}
	return hash.Sum64(), nil
}

// ComputeFileHash returns the hash of the file at path.
func ComputeFileHash(path string) (hash uint64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return ComputeHash(file)
}

// Checksum returns the hex encoded hash of data, as recorded in run history.
func Checksum(data []byte) string {
	return FormatHash(xxhash.Sum64(data))
}

func FormatHash(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}
