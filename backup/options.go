package backup

import (
	"time"
)

const (
	DefaultUploadAttempts = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

type options struct {
	uploadAttempts  int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	encryptionKey   []byte
	maxArchiveBytes int64
	now             func() time.Time
}

func defaultOptions() options {
	return options{
		uploadAttempts: DefaultUploadAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		now:            time.Now,
	}
}

type Option func(o *options)

// WithUploadRetry sets the upload retry policy. Only network failures are
// retried; attempts includes the first try.
func WithUploadRetry(attempts int, initialBackoff, maxBackoff time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.uploadAttempts = attempts
		}
		if initialBackoff > 0 {
			o.initialBackoff = initialBackoff
		}
		if maxBackoff > 0 {
			o.maxBackoff = maxBackoff
		}
	}
}

// WithEncryptionKey sets the key used to seal archives of jobs with
// encryption enabled. Without it those jobs fail.
func WithEncryptionKey(key []byte) Option {
	return func(o *options) {
		o.encryptionKey = key
	}
}

func WithMaxArchiveBytes(maxArchiveBytes int64) Option {
	return func(o *options) {
		o.maxArchiveBytes = maxArchiveBytes
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
