package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/models"
)

func TestServerWait(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   string
		want   time.Duration
	}{
		{"seconds below threshold", "2", "", 2 * time.Second},
		{"fractional seconds", "1.5", "", 1500 * time.Millisecond},
		{"milliseconds at threshold", "50", "", 50 * time.Millisecond},
		{"large value is milliseconds", "700", "", 700 * time.Millisecond},
		{"body hint", "", `{"error":{"message":"Rate limit reached, please try again in 1.2s"}}`, 1200 * time.Millisecond},
		{"body hint clamped to minimum", "", "try again in 0.05s", 200 * time.Millisecond},
		{"body hint case insensitive", "", "Try Again In 3s", 3 * time.Second},
		{"header wins over body", "4", "try again in 9s", 4 * time.Second},
		{"no hint", "", "internal error", 0},
		{"unparseable header falls back to body", "soon", "try again in 2s", 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ServerWait(tt.header, tt.body); got != tt.want {
				t.Errorf("ServerWait(%q, %q) = %v, want %v", tt.header, tt.body, got, tt.want)
			}
		})
	}
}

func TestServerWaitHTTPDate(t *testing.T) {
	future := time.Now().Add(3 * time.Second).UTC().Format(http.TimeFormat)
	got := ServerWait(future, "")
	if got <= time.Second || got > 3*time.Second {
		t.Errorf("ServerWait(%q, \"\") = %v, want within (1s, 3s]", future, got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := ServerWait(past, "try again in 2s"); got != 0 {
		t.Errorf("ServerWait(%q, ...) = %v, want 0 for a past date", past, got)
	}
}

func TestBackoffBounds(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 400 * time.Millisecond, MaxDelay: 30 * time.Second}

	for attempt := range 4 {
		got := p.Backoff(attempt, 0)
		minWait := p.BaseDelay << attempt
		maxWait := minWait + 200*time.Millisecond
		if got < minWait || got > maxWait {
			t.Errorf("Backoff(%d, 0) = %v, want in [%v, %v]", attempt, got, minWait, maxWait)
		}
	}
}

func TestBackoffHonorsServerWait(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 400 * time.Millisecond, MaxDelay: 30 * time.Second}

	serverWait := 5 * time.Second
	got := p.Backoff(0, serverWait)
	if got < serverWait {
		t.Errorf("Backoff = %v, want at least the server wait %v", got, serverWait)
	}
	if got > serverWait+200*time.Millisecond {
		t.Errorf("Backoff = %v, want at most server wait plus jitter", got)
	}
}

func TestBackoffCappedAtMaxDelay(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 400 * time.Millisecond, MaxDelay: 2 * time.Second}

	if got := p.Backoff(8, 0); got != p.MaxDelay {
		t.Errorf("Backoff(8, 0) = %v, want capped at %v", got, p.MaxDelay)
	}
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(nil)
	if p.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", p.MaxAttempts)
	}
	if p.BaseDelay != 400*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 400ms", p.BaseDelay)
	}

	p = NewPolicy(&models.RetryConfig{MaxAttempts: 2, BaseDelayMs: 100})
	if p.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want 2", p.MaxAttempts)
	}
	if p.BaseDelay != 100*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 100ms", p.BaseDelay)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(models.NewProviderHTTPError(models.ProviderGroq, 429, "rate limited")) {
		t.Error("429 should be retryable")
	}
	if !Retryable(models.NewProviderHTTPError(models.ProviderGroq, 503, "unavailable")) {
		t.Error("503 should be retryable")
	}
	if Retryable(models.NewProviderHTTPError(models.ProviderGroq, 400, "bad request")) {
		t.Error("400 should not be retryable")
	}
	if Retryable(errors.New("plain error")) {
		t.Error("non-AppError should not be retryable")
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return models.NewProviderHTTPError(models.ProviderOpenAI, 401, "unauthorized")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal error retried: %d calls, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return models.NewProviderHTTPError(models.ProviderGroq, 429, "rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return models.NewProviderHTTPError(models.ProviderGroq, 429, "rate limited")
	})
	if err == nil {
		t.Fatal("expected last error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error type = %T, want *models.AppError", err)
	}
	if appErr.Type != models.ErrorTypeRateLimit {
		t.Errorf("error type = %s, want %s", appErr.Type, models.ErrorTypeRateLimit)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, "test", func(ctx context.Context) error {
		calls++
		return models.NewProviderHTTPError(models.ProviderGroq, 429, "rate limited")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
