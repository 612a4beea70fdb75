package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/go-pricescout/internal/ports"
)

// IdleCloser is implemented by providers that pool network connections.
type IdleCloser interface {
	CloseIdleConnections()
}

// IdleConnCleanup returns a hook that closes idle pooled connections of
// every provider implementing IdleCloser, looking through middleware layers.
func IdleConnCleanup(providers ...ports.Provider) ports.CleanupHook {
	return ports.CleanupFunc(func(ctx context.Context, _ int) error {
		for _, p := range providers {
			if c, ok := Unwrap(p).(IdleCloser); ok {
				c.CloseIdleConnections()
			}
		}
		return ctx.Err()
	})
}

// ReleaseCleanup returns a hook that releases every provider implementing
// ports.Releaser, looking through middleware layers. Failures are joined.
func ReleaseCleanup(providers ...ports.Provider) ports.CleanupHook {
	return ports.CleanupFunc(func(ctx context.Context, _ int) error {
		var errs []error
		for _, p := range providers {
			r, ok := Unwrap(p).(ports.Releaser)
			if !ok {
				continue
			}
			if err := r.Release(ctx); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", p.ID(), err))
			}
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
		}
		return errors.Join(errs...)
	})
}

// ChainCleanup runs hooks in order and joins their errors. Every hook runs
// even when an earlier one fails.
func ChainCleanup(hooks ...ports.CleanupHook) ports.CleanupHook {
	return ports.CleanupFunc(func(ctx context.Context, phase int) error {
		var errs []error
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if err := h.Cleanup(ctx, phase); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
