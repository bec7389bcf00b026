// Package retry implements the backoff policy applied to retryable
// provider failures: exponential delay with jitter, bounded attempts,
// honoring server-suggested waits when the provider supplies one.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 400 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
	maxJitter          = 200 * time.Millisecond
)

// Policy bounds and shapes the retry loop for one provider.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewPolicy builds a policy from per-provider config; nil or zero fields
// fall back to the defaults the rate-limit-prone providers shipped with.
func NewPolicy(cfg *models.RetryConfig) Policy {
	p := Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
	if cfg == nil {
		return p
	}
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelayMs > 0 {
		p.BaseDelay = time.Duration(cfg.BaseDelayMs) * time.Millisecond
	}
	if cfg.MaxDelayMs > 0 {
		p.MaxDelay = time.Duration(cfg.MaxDelayMs) * time.Millisecond
	}
	return p
}

// Retryable classifies an error: rate limits and transient 5xx responses
// are retryable, every other failure propagates immediately.
func Retryable(err error) bool {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return false
}

// Backoff computes the wait before the given zero-based attempt:
// max(serverWait, BaseDelay*2^attempt) plus up to 200ms of jitter,
// capped at MaxDelay.
func (p Policy) Backoff(attempt int, serverWait time.Duration) time.Duration {
	delay := p.BaseDelay << attempt
	if serverWait > delay {
		delay = serverWait
	}
	delay += time.Duration(rand.Int63n(int64(maxJitter)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs op up to MaxAttempts times, sleeping between retryable
// failures. The last observed error is returned when attempts are
// exhausted; fatal errors and context cancellation return immediately.
func (p Policy) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		wait := p.Backoff(attempt, suggestedWait(err))
		fiberlog.Warnf("%s: attempt %d/%d failed (%v), retrying in %v", label, attempt+1, p.MaxAttempts, err, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// suggestedWait extracts the server-provided wait hint, if any.
func suggestedWait(err error) time.Duration {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}

var tryAgainRe = regexp.MustCompile(`(?i)try again in\s+([0-9]+(?:\.[0-9]+)?)s`)

// ServerWait parses a provider's suggested wait from the Retry-After
// header value (numeric or HTTP-date form) or, failing that, from a
// "try again in X.Ys" hint in the error body. A bare number below 50 is
// treated as seconds, otherwise as milliseconds. Returns 0 when neither
// source yields a hint.
func ServerWait(retryAfterHeader, body string) time.Duration {
	if v := strings.TrimSpace(retryAfterHeader); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			if n < 50 {
				return time.Duration(n * float64(time.Second))
			}
			return time.Duration(n * float64(time.Millisecond))
		}
		if at, err := http.ParseTime(v); err == nil {
			if wait := time.Until(at); wait > 0 {
				return wait
			}
			return 0
		}
	}

	if m := tryAgainRe.FindStringSubmatch(body); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			wait := time.Duration(secs * float64(time.Second))
			if wait < 200*time.Millisecond {
				wait = 200 * time.Millisecond
			}
			return wait
		}
	}
	return 0
}
