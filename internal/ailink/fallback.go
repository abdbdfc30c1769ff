package ailink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CredentialSet is the ordered list of API keys for a single provider.
type CredentialSet []string

// ErrNoCredentials is returned when a provider has no usable credentials.
var ErrNoCredentials = errors.New("no credentials configured")

// ExhaustedError is returned when every credential failed. It carries only
// the last error; earlier failures are reported through the attempt hook.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e == nil || e.Err == nil {
		return "all credentials failed"
	}
	return fmt.Sprintf("all %d credential(s) failed: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CredentialAttempt describes one try of one credential.
type CredentialAttempt struct {
	Index    int
	Duration time.Duration
	Err      error
}

type fallbackOptions struct {
	timeout   time.Duration
	onAttempt func(CredentialAttempt)
}

// FallbackOption customises ExecuteWithFallback.
type FallbackOption func(*fallbackOptions)

// WithCredentialTimeout bounds each credential attempt separately.
func WithCredentialTimeout(d time.Duration) FallbackOption {
	return func(o *fallbackOptions) { o.timeout = d }
}

// WithAttemptHook is called after every credential attempt.
func WithAttemptHook(fn func(CredentialAttempt)) FallbackOption {
	return func(o *fallbackOptions) { o.onAttempt = fn }
}

// ExecuteWithFallback runs op with each credential in order and returns the
// first success. Credentials are tried strictly one after another. When all
// fail, the result is an *ExhaustedError wrapping the last error.
func ExecuteWithFallback[T any](ctx context.Context, creds CredentialSet, op func(ctx context.Context, credential string) (T, error), opts ...FallbackOption) (T, error) {
	var zero T
	if len(creds) == 0 {
		return zero, ErrNoCredentials
	}
	if op == nil {
		return zero, errors.New("operation is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var options fallbackOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var lastErr error
	attempts := 0
	for i, cred := range creds {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return zero, err
			}
			break
		}

		attempts++
		start := time.Now()
		result, err := runAttempt(ctx, options.timeout, cred, op)
		if options.onAttempt != nil {
			options.onAttempt(CredentialAttempt{Index: i, Duration: time.Since(start), Err: err})
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, cred string, op func(context.Context, string) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return op(ctx, cred)
}
