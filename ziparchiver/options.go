package ziparchiver

import "github.com/stupid-simple/cloudbackup/ziparchiver/zipwriter"

// NoCompression stores entries without deflating them.
const NoCompression = zipwriter.NoCompression

type WriteOption func(o *writeOptions)

type writeOptions struct {
	level           int
	maxArchiveBytes int64
}

// Deflate entries at level (1..9). Zero stores them uncompressed.
func WithCompressionLevel(level int) WriteOption {
	return func(o *writeOptions) {
		o.level = level
	}
}

// The maximum number of bytes (uncompressed) to store in the archive.
func WithMaxArchiveBytes(maxArchiveBytes int64) WriteOption {
	return func(o *writeOptions) {
		o.maxArchiveBytes = maxArchiveBytes
	}
}

type ExtractOption func(o *extractOptions)

type extractOptions struct {
	dryRun    bool
	overwrite bool
}

func WithExtractDryRun(dryRun bool) ExtractOption {
	return func(o *extractOptions) {
		o.dryRun = dryRun
	}
}

// Replace existing files whose content differs from the archive.
func WithOverwrite(overwrite bool) ExtractOption {
	return func(o *extractOptions) {
		o.overwrite = overwrite
	}
}
