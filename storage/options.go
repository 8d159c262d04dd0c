package storage

import (
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

type options struct {
	timeout    time.Duration
	httpClient *http.Client
}

func defaultOptions() options {
	return options{timeout: defaultTimeout}
}

type Option func(o *options)

// Every storage operation is bounded by timeout. Expiry surfaces as ErrNetwork.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithHTTPClient(cli *http.Client) Option {
	return func(o *options) {
		o.httpClient = cli
	}
}
