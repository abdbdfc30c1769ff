package ailink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
)

func TestExecuteWithFallbackUsesNextCredential(t *testing.T) {
	var seen []string
	var attempts []CredentialAttempt

	draft, err := ExecuteWithFallback(context.Background(), CredentialSet{"key-1", "key-2"},
		func(_ context.Context, cred string) (core.ExpenseDraft, error) {
			seen = append(seen, cred)
			if cred == "key-1" {
				return core.ExpenseDraft{}, &driver.TransportError{Provider: "openai", Err: errors.New("connection reset")}
			}
			return core.ExpenseDraft{Merchant: "Corner Grocer", Category: "Groceries"}, nil
		},
		WithAttemptHook(func(a CredentialAttempt) { attempts = append(attempts, a) }),
	)

	require.NoError(t, err)
	require.Equal(t, "Corner Grocer", draft.Merchant)
	require.Equal(t, []string{"key-1", "key-2"}, seen)
	require.Len(t, attempts, 2)
	require.Error(t, attempts[0].Err)
	require.NoError(t, attempts[1].Err)
}

func TestExecuteWithFallbackStopsAtFirstSuccess(t *testing.T) {
	calls := 0
	got, err := ExecuteWithFallback(context.Background(), CredentialSet{"a", "b", "c"},
		func(_ context.Context, cred string) (string, error) {
			calls++
			return cred, nil
		})
	require.NoError(t, err)
	require.Equal(t, "a", got)
	require.Equal(t, 1, calls)
}

func TestExecuteWithFallbackSurfacesLastError(t *testing.T) {
	first := errors.New("first")
	last := &driver.DataError{Provider: "xai", Reason: "missing category"}

	_, err := ExecuteWithFallback(context.Background(), CredentialSet{"a", "b"},
		func(_ context.Context, cred string) (int, error) {
			if cred == "a" {
				return 0, first
			}
			return 0, last
		})

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 2, exhausted.Attempts)
	require.ErrorIs(t, err, last)
	require.NotErrorIs(t, err, first)
}

func TestExecuteWithFallbackRequiresCredentials(t *testing.T) {
	_, err := ExecuteWithFallback(context.Background(), nil, func(context.Context, string) (int, error) {
		t.Fatal("operation must not run")
		return 0, nil
	})
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestExecuteWithFallbackAppliesCredentialTimeout(t *testing.T) {
	calls := 0
	got, err := ExecuteWithFallback(context.Background(), CredentialSet{"slow", "fast"},
		func(ctx context.Context, cred string) (string, error) {
			calls++
			if cred == "slow" {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "ok", ctx.Err()
		},
		WithCredentialTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 2, calls)
}

func TestExecuteWithFallbackStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := ExecuteWithFallback(ctx, CredentialSet{"a", "b"},
		func(context.Context, string) (int, error) {
			calls++
			cancel()
			return 0, errors.New("boom")
		})
	require.Error(t, err)
	require.Equal(t, 1, calls)

	_, err = ExecuteWithFallback(ctx, CredentialSet{"a"}, func(context.Context, string) (int, error) {
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
