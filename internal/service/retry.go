package service

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted means every attempt of a bounded retry failed with a
// retryable error. Treated as operator-fatal, not a client error.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// retryBounded runs op up to maxAttempts times, retrying only while retryable
// reports the error as transient. No backoff: the only known collision source
// is a duplicate token string, and a fresh attempt regenerates it.
func retryBounded(maxAttempts int, op func() error, retryable func(error) bool) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = op()
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrRetryExhausted, err)
}
