package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/duckmesh/duckchat/internal/observability"
)

type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// RetryingCompleter bounds each call with a timeout and retries transient
// failures with exponential backoff.
type RetryingCompleter struct {
	next   Completer
	cfg    RetryConfig
	logger *slog.Logger
}

func NewRetryingCompleter(next Completer, cfg RetryConfig, logger *slog.Logger) *RetryingCompleter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingCompleter{next: next, cfg: cfg, logger: logger}
}

func (r *RetryingCompleter) Complete(ctx context.Context, req Request) (Completion, error) {
	var completion Completion
	operation := func() error {
		attemptCtx := ctx
		if r.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
			defer cancel()
		}
		result, err := r.next.Complete(attemptCtx, req)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		completion = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff
	policy.MaxInterval = r.cfg.MaxBackoff
	policy.MaxElapsedTime = 0
	schedule := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.MaxAttempts-1)), ctx)

	attempt := 1
	err := backoff.RetryNotify(operation, schedule, func(err error, wait time.Duration) {
		observability.IncrementModelRetries()
		r.logger.Warn("model call failed; retrying",
			append(observability.TurnAttrs(ctx), "attempt", attempt, "wait", wait.String(), "error", err.Error())...)
		attempt++
	})
	if err != nil {
		return Completion{}, err
	}
	return completion, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
