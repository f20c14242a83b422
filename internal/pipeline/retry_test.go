package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgallion1/patgest/internal/extract"
)

func TestIsRetryable(t *testing.T) {
	retry := &extract.RetryableError{StatusCode: 429, Message: "rate limited"}
	if !IsRetryable(retry) {
		t.Error("expected RetryableError to be retryable")
	}
	if !IsRetryable(fmt.Errorf("extract: %w", retry)) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
	if IsRetryable(errors.New("bad request")) {
		t.Error("expected plain error not to be retryable")
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(min(attempt, 5))) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestRetryDelay(t *testing.T) {
	plain := errors.New("boom")
	if got := retryDelay(plain, time.Second); got != time.Second {
		t.Errorf("plain error: got %v, want 1s", got)
	}
	slow := &extract.RetryableError{StatusCode: 429, RetryAfter: 10 * time.Second}
	if got := retryDelay(fmt.Errorf("wrap: %w", slow), time.Second); got != 10*time.Second {
		t.Errorf("retry-after: got %v, want 10s", got)
	}
	if got := retryDelay(slow, 20*time.Second); got != 20*time.Second {
		t.Errorf("backoff longer than retry-after: got %v, want 20s", got)
	}
	huge := &extract.RetryableError{StatusCode: 503, RetryAfter: time.Hour}
	if got := retryDelay(huge, time.Second); got != time.Minute {
		t.Errorf("capped retry-after: got %v, want 1m", got)
	}
}
