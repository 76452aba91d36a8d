package compile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/pkg/logger"
)

// Builder runs the external toolchain once on target. On failure the
// returned diagnostic holds the toolchain output.
type Builder interface {
	Build(ctx context.Context, target string) (artifact string, diagnostic string, err error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, target string) (string, string, error)

func (f BuilderFunc) Build(ctx context.Context, target string) (string, string, error) {
	return f(ctx, target)
}

// AttemptObserver is notified after every build attempt.
type AttemptObserver func(ctx context.Context, attempt int, err error)

// Result describes a successful build.
type Result struct {
	Artifact string
	Attempts int
}

// Supervisor retries a Builder with a fixed delay between attempts.
type Supervisor struct {
	builder  Builder
	observer AttemptObserver
}

type Option func(*Supervisor)

// WithObserver registers a hook called after each attempt.
func WithObserver(o AttemptObserver) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

func NewSupervisor(builder Builder, opts ...Option) *Supervisor {
	s := &Supervisor{builder: builder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompileWithRetry builds target up to maxAttempts times, sleeping delay
// between attempts. When every attempt fails the error is classified as
// CompileFailure and carries the last attempt's diagnostic.
func (s *Supervisor) CompileWithRetry(
	ctx context.Context,
	target string,
	maxAttempts int,
	delay time.Duration,
) (*Result, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	log := logger.FromContext(ctx).With("target", target)
	var (
		attempts   int
		artifact   string
		diagnostic string
	)
	maxRetries := uint64(maxAttempts - 1) // #nosec G115 -- validated above
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, constant(delay)), func(ctx context.Context) error {
		attempts++
		out, diag, err := s.builder.Build(ctx, target)
		if s.observer != nil {
			s.observer(ctx, attempts, err)
		}
		if err == nil {
			artifact = out
			return nil
		}
		diagnostic = diag
		if attempts < maxAttempts {
			log.Warn("build failed, retrying", "attempt", attempts, "max_attempts", maxAttempts, "error", err)
		} else {
			log.Error("build failed", "attempt", attempts, "max_attempts", maxAttempts, "error", err)
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &core.Error{
			Code:    core.CompileFailure,
			Message: fmt.Sprintf("build failed after %d attempts", attempts),
			Err:     err,
			Details: map[string]any{
				"attempts":   attempts,
				"diagnostic": diagnostic,
			},
		}
	}
	log.Info("build succeeded", "attempts", attempts, "artifact", artifact)
	return &Result{Artifact: artifact, Attempts: attempts}, nil
}

// constant returns a fixed backoff; a non-positive delay retries immediately.
func constant(delay time.Duration) retry.Backoff {
	if delay > 0 {
		return retry.NewConstant(delay)
	}
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	})
}

// Diagnostic returns the toolchain output attached to a CompileFailure.
func Diagnostic(err error) string {
	var e *core.Error
	if !errors.As(err, &e) || e.Code != core.CompileFailure {
		return ""
	}
	diag, _ := e.Details["diagnostic"].(string)
	return diag
}

// Attempts returns how many builds a CompileFailure made.
func Attempts(err error) int {
	var e *core.Error
	if !errors.As(err, &e) || e.Code != core.CompileFailure {
		return 0
	}
	n, _ := e.Details["attempts"].(int)
	return n
}
