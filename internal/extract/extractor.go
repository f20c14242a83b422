package extract

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Extractor proposes candidate measurement records for a chunk of text.
type Extractor interface {
	Extract(ctx context.Context, text string) (Response, error)
	Model() string
	Close()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	// RetryAfter is the delay the server asked for, or 0.
	RetryAfter time.Duration
}

// newRetryableError builds a RetryableError from a throttled or failing
// response, honoring a Retry-After header given in seconds.
func newRetryableError(resp *http.Response, body []byte) *RetryableError {
	e := &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, Truncate(e.Message, 200))
}

// New returns the extractor for provider "anthropic" or "local".
func New(provider, apiKey, model, localURL string) (Extractor, error) {
	switch provider {
	case "", "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewClaudeClient(apiKey, model), nil
	case "local":
		if localURL == "" {
			return nil, fmt.Errorf("local provider requires a server URL")
		}
		return NewLocalClient(localURL), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}
