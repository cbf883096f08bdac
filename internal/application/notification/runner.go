// internal/application/notification/runner.go
package notification

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runnable is anything with a blocking Run loop (pollers, watchers, monitors).
type Runnable interface {
	Run(ctx context.Context) error
}

// RunAll runs every r concurrently until ctx is cancelled or one of them fails.
func RunAll(ctx context.Context, rs ...Runnable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rs {
		if r == nil {
			continue
		}
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	return g.Wait()
}

// Start runs rs in the background. stop cancels them and returns only after
// every loop has exited, with RunAll's error. Calling stop again is a no-op.
func Start(ctx context.Context, rs ...Runnable) (stop func() error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- RunAll(ctx, rs...) }()

	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() {
			cancel()
			err = <-done
		})
		return err
	}
}
