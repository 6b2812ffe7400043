package consumer

import (
	"context"
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
)

// Handler processes one entry. A nil error acknowledges it; any error leaves
// it pending.
type Handler func(ctx context.Context, entry entities.LogEntry) error

// Middleware wraps a Handler
type Middleware func(next Handler) Handler

// Chain composes middlewares around h. The first middleware is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// RecoveryMiddleware turns a handler panic into an Internal error
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, entry entities.LogEntry) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Newf(errors.CodeInternal, "handler panicked: %v", r).
						WithMeta("id", entry.ID.String())
				}
			}()
			return next(ctx, entry)
		}
	}
}

// TimeoutMiddleware gives the handler a context that expires after d and
// fails the entry if the handler is still running at that point. It waits for
// the handler to return, so entries stay handled one at a time and in order;
// a handler that ignores its context is only failed late, never abandoned.
// Zero or negative d is a no-op.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next Handler) Handler { return next }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, entry entities.LogEntry) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			err := next(tctx, entry)
			if ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
				return errors.WrapWithCodef(tctx.Err(), errors.CodeDeadlineExceeded,
					"handler for %s did not finish within %s", entry.ID, d)
			}
			return err
		}
	}
}

// RetryConfig controls RetryMiddleware
type RetryConfig struct {
	// MaxAttempts counts the first call
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt
	Backoff func(attempt int) time.Duration
	// RetryIf limits retries to matching errors; nil retries everything
	RetryIf func(err error) bool
	// Jitter adds up to this much random wait
	Jitter time.Duration
}

// RetryMiddleware re-runs a failing handler in place before giving up and
// leaving the entry pending.
func RetryMiddleware(cfg RetryConfig) Middleware {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := cfg.RetryIf
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, entry entities.LogEntry) error {
			var lastErr error
			for i := 1; i <= attempts; i++ {
				lastErr = next(ctx, entry)
				if lastErr == nil {
					return nil
				}
				if ctx.Err() != nil || i == attempts || !shouldRetry(lastErr) {
					return lastErr
				}

				var wait time.Duration
				if cfg.Backoff != nil {
					wait = cfg.Backoff(i)
				}
				if cfg.Jitter > 0 {
					wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
				}
				if wait <= 0 {
					continue
				}

				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return lastErr
				case <-timer.C:
				}
			}
			return lastErr
		}
	}
}
