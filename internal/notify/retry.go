package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Retry wraps g so transient failures are retried up to maxAttempts with
// exponential backoff starting at baseDelay. PermanentError and context
// cancellation stop immediately.
func Retry(g Gateway, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) Gateway {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{next: g, max: maxAttempts, base: baseDelay, logger: logger.With("component", "retry"), sleep: sleepCtx}
}

type retrying struct {
	next   Gateway
	max    int
	base   time.Duration
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func (r *retrying) Send(ctx context.Context, text string, markdown bool) (int64, error) {
	var id int64
	err := r.do(ctx, "send", func() error {
		var err error
		id, err = r.next.Send(ctx, text, markdown)
		return err
	})
	return id, err
}

func (r *retrying) Fetch(ctx context.Context, cursor int64) (Batch, error) {
	var batch Batch
	err := r.do(ctx, "fetch", func() error {
		var err error
		batch, err = r.next.Fetch(ctx, cursor)
		return err
	})
	return batch, err
}

func (r *retrying) do(ctx context.Context, op string, fn func() error) error {
	var last error
	for i := 0; i < r.max; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return err
		}
		last = err
		if i == r.max-1 {
			break
		}

		delay := r.base * time.Duration(1<<i)
		r.logger.Warn("transport call failed, retrying",
			"op", op, "attempt", i+1, "delay", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
