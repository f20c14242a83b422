package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/patgest/internal/extract"
)

// MaxRetries is the default number of model attempts per chunk.
const MaxRetries = 3

const maxBackoff = 30 * time.Second

// IsRetryable reports whether err wraps an extract.RetryableError.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff is the wait before retry attempt+1: 1s doubling per attempt up to
// 30s, plus up to 50% jitter.
func Backoff(attempt int) time.Duration {
	base := min(time.Second<<min(attempt, 5), maxBackoff)
	return base + time.Duration(rand.Int64N(int64(base)/2))
}

// retryDelay waits at least as long as the server asked for.
func retryDelay(err error, backoff time.Duration) time.Duration {
	var retryErr *extract.RetryableError
	if errors.As(err, &retryErr) && retryErr.RetryAfter > backoff {
		return min(retryErr.RetryAfter, 2*maxBackoff)
	}
	return backoff
}
