package nav

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ayam04/pos-scraper/internal/ratelimit"
)

type Class int

const (
	ClassRetryable Class = iota
	ClassFatal
)

// Classifier decides whether a failed attempt is worth repeating.
type Classifier func(error) Class

// Backoff maps the number of completed failed attempts to the pause before
// the next one.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles the base pause after every failed attempt.
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<attempt)
	}
}

// LinearBackoff grows the pause by a fixed step per failed attempt.
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return step * time.Duration(attempt+1)
	}
}

// retryableMarkers are the transient-failure signatures the driver
// surfaces as plain error strings: element and navigation timeouts, and
// chromium network errors.
var retryableMarkers = []string{"timeout", "net::err"}

// DefaultClassifier retries only what looks transient: timeouts, network
// failures, and soft blocks. Structural mismatches, a cancelled run, and
// anything unrecognized are fatal, since repeating an attempt cannot change
// their outcome.
func DefaultClassifier(err error) Class {
	if errors.Is(err, ErrBlocked) {
		return ClassRetryable
	}
	var structural *StructuralError
	if errors.As(err, &structural) {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return ClassRetryable
		}
	}
	return ClassFatal
}

// Policy wraps blocking page actions with a politeness delay, bounded
// retries, backoff between attempts, and failure classification. One policy
// serves every call site of a pipeline.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	Classify    Classifier
	Limiter     ratelimit.RateLimiter
	Logger      *slog.Logger
}

func NewPolicy(maxAttempts int, limiter ratelimit.RateLimiter) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(time.Second),
		Classify:    DefaultClassifier,
		Limiter:     limiter,
		Logger:      slog.Default().With("component", "nav"),
	}
}

type state int

const (
	statePending state = iota
	stateAttempting
	stateRetryWait
	stateSuccess
	stateFailed
)

// Do runs action under the policy. The politeness delay applies before
// every attempt, the first included. A retryable failure waits out the
// backoff and tries again up to MaxAttempts; a fatal classification stops
// immediately. The returned error is always an *ExtractionError carrying
// op, the attempt count, and the last cause.
func (p *Policy) Do(ctx context.Context, op string, action func(context.Context) error) error {
	var (
		st      = statePending
		attempt int
		lastErr error
	)

	for {
		switch st {
		case statePending:
			st = stateAttempting

		case stateAttempting:
			if err := ctx.Err(); err != nil {
				lastErr = err
				st = stateFailed
				break
			}
			if p.Limiter != nil {
				if err := p.Limiter.Wait(ctx); err != nil {
					return &ExtractionError{Stage: op, Attempts: attempt, Err: err}
				}
			}
			attempt++

			err := action(ctx)
			if err == nil {
				st = stateSuccess
				break
			}
			lastErr = err

			if p.Classify(err) == ClassFatal {
				p.Logger.Error("action failed", "op", op, "attempt", attempt, "error", err)
				st = stateFailed
				break
			}
			if attempt >= p.MaxAttempts {
				p.Logger.Warn("retries exhausted", "op", op, "attempts", attempt, "error", err)
				st = stateFailed
				break
			}
			p.Logger.Warn("retrying", "op", op, "attempt", attempt, "error", err)
			st = stateRetryWait

		case stateRetryWait:
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				st = stateFailed
			case <-time.After(p.Backoff(attempt - 1)):
				st = stateAttempting
			}

		case stateSuccess:
			return nil

		case stateFailed:
			return &ExtractionError{Stage: op, Attempts: attempt, Err: lastErr}
		}
	}
}
