package fileutils

import (
	"context"
)

// WatchFile polls path on every ticker event and emits when its content hash
// changes. Read errors are reported to onErr and do not stop the watch.
func WatchFile(ctx context.Context, path string, ticker <-chan struct{}, onErr func(err error)) (<-chan struct{}, error) {
	ch := make(chan struct{})

	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticker:
				if !ok {
					return
				}
				newHash, err := ComputeFileHash(path)
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				if lastHash == newHash {
					continue
				}
				lastHash = newHash
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
