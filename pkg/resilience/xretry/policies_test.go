package xretry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func TestKindPolicy(t *testing.T) {
	ctx := context.Background()
	p := NewKindPolicy(3)

	t.Run("RetryableKinds", func(t *testing.T) {
		for _, kind := range []xmsg.ErrorKind{
			xmsg.KindConnection, xmsg.KindTimeout, xmsg.KindRateLimit, xmsg.KindSoapXML, xmsg.KindUnknown,
		} {
			assert.True(t, p.ShouldRetry(ctx, 1, xmsg.NewError(kind, "boom")), kind)
		}
	})

	t.Run("NonRetryableKinds", func(t *testing.T) {
		for _, kind := range []xmsg.ErrorKind{
			xmsg.KindValidation, xmsg.KindAuthentication, xmsg.KindBusinessLogic,
			xmsg.KindConfiguration, xmsg.KindDataMapping,
		} {
			assert.False(t, p.ShouldRetry(ctx, 1, xmsg.NewError(kind, "boom")), kind)
		}
	})

	t.Run("OverrideWins", func(t *testing.T) {
		err := xmsg.NewError(xmsg.KindAuthentication, "service temporarily unavailable").
			OverrideRetryable(true)
		assert.True(t, p.ShouldRetry(ctx, 1, err))
	})

	t.Run("AttemptBudget", func(t *testing.T) {
		err := xmsg.NewError(xmsg.KindConnection, "boom")
		assert.True(t, p.ShouldRetry(ctx, 2, err))
		assert.False(t, p.ShouldRetry(ctx, 3, err))
	})

	t.Run("UnclassifiedErrorRetries", func(t *testing.T) {
		assert.True(t, p.ShouldRetry(ctx, 1, errors.New("plain error")))
	})

	t.Run("CanceledContextStops", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.False(t, p.ShouldRetry(canceled, 1, xmsg.NewError(xmsg.KindConnection, "boom")))
	})

	t.Run("MinimumOneAttempt", func(t *testing.T) {
		assert.Equal(t, 1, NewKindPolicy(0).MaxAttempts())
	})
}

func TestNeverRetryPolicy(t *testing.T) {
	p := NewNeverRetry()
	assert.Equal(t, 1, p.MaxAttempts())
	assert.False(t, p.ShouldRetry(context.Background(), 1, errors.New("boom")))
}
