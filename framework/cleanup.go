package framework

import (
	"context"
	"fmt"
	"time"
)

// Cleanup runs every registered release in reverse registration order.
// All releases are attempted; failures are collected into a CleanupError.
// The stack is emptied, so a second call is a no-op.
func (f *Framework) Cleanup() error {
	f.mu.Lock()
	releases := f.releases
	f.releases = nil
	f.mu.Unlock()

	if len(releases) == 0 {
		return nil
	}

	f.logger.Info("starting cleanup", "namespace", f.namespace, "releases", len(releases))

	timeout := f.config.CleanupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), timeout)
	defer cancel()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		r := releases[i]
		f.logger.Debug("releasing", "name", r.Name)
		if err := runRelease(ctx, r); err != nil {
			f.logger.Warn("release failed", "name", r.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		}
	}

	if len(errs) > 0 {
		return NewCleanupError("release", errs...)
	}

	f.logger.Info("cleanup completed", "namespace", f.namespace)
	return nil
}

func runRelease(ctx context.Context, r Release) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Fn(ctx)
}
