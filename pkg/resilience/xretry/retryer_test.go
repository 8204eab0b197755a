package xretry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func TestRetryerDo(t *testing.T) {
	ctx := context.Background()

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewKindPolicy(3)),
			WithBackoffPolicy(NewNoBackoff()),
		)

		calls := 0
		err := r.Do(ctx, func(_ context.Context) error {
			calls++
			if calls < 3 {
				return xmsg.NewError(xmsg.KindConnection, "refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("NonRetryableStopsImmediately", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewKindPolicy(3)),
			WithBackoffPolicy(NewNoBackoff()),
		)

		calls := 0
		err := r.Do(ctx, func(_ context.Context) error {
			calls++
			return xmsg.NewError(xmsg.KindValidation, "bad field")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, xmsg.KindValidation, xmsg.KindOf(err))
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewKindPolicy(3)),
			WithBackoffPolicy(NewNoBackoff()),
		)

		calls := 0
		err := r.Do(ctx, func(_ context.Context) error {
			calls++
			return xmsg.NewError(xmsg.KindTimeout, "slow")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("UnrecoverableShortCircuits", func(t *testing.T) {
		r := NewRetryer(
			WithRetryPolicy(NewKindPolicy(5)),
			WithBackoffPolicy(NewNoBackoff()),
		)

		calls := 0
		err := r.Do(ctx, func(_ context.Context) error {
			calls++
			return Unrecoverable(errors.New("fatal"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("OnRetryObservesAttempts", func(t *testing.T) {
		var attempts []int
		r := NewRetryer(
			WithRetryPolicy(NewKindPolicy(3)),
			WithBackoffPolicy(NewNoBackoff()),
			WithOnRetry(func(attempt int, _ error) {
				attempts = append(attempts, attempt)
			}),
		)

		_ = r.Do(ctx, func(_ context.Context) error {
			return xmsg.NewError(xmsg.KindConnection, "refused")
		})
		assert.Equal(t, []int{1, 2}, attempts)
	})

	t.Run("NilGuards", func(t *testing.T) {
		var r *Retryer
		assert.ErrorIs(t, r.Do(ctx, func(_ context.Context) error { return nil }), ErrNilRetryer)

		valid := NewRetryer()
		assert.ErrorIs(t, valid.Do(nil, func(_ context.Context) error { return nil }), ErrNilContext) //nolint:staticcheck
		assert.ErrorIs(t, valid.Do(ctx, nil), ErrNilFunc)
	})

	t.Run("ZeroValueUsable", func(t *testing.T) {
		var r Retryer
		err := r.Do(ctx, func(_ context.Context) error { return nil })
		assert.NoError(t, err)
	})
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()
	r := NewRetryer(
		WithRetryPolicy(NewKindPolicy(3)),
		WithBackoffPolicy(NewNoBackoff()),
	)

	calls := 0
	got, err := DoWithResult(ctx, r, func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", xmsg.NewError(xmsg.KindConnection, "refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)

	_, err = DoWithResult[string](ctx, nil, func(_ context.Context) (string, error) { return "", nil })
	assert.ErrorIs(t, err, ErrNilRetryer)
}

func TestKindFloor(t *testing.T) {
	t.Run("ConnectionFloor", func(t *testing.T) {
		err := xmsg.NewError(xmsg.KindConnection, "refused")
		assert.Equal(t, 30*time.Second, kindFloor(err))
	})

	t.Run("ValidationNoFloor", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), kindFloor(xmsg.NewError(xmsg.KindValidation, "bad")))
	})

	t.Run("PlainErrorNoFloor", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), kindFloor(errors.New("plain")))
	})
}
