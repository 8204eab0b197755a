package xretry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0))
		assert.Equal(t, 10*time.Second, b.NextDelay(1))
		assert.Equal(t, 20*time.Second, b.NextDelay(2))
		assert.Equal(t, 40*time.Second, b.NextDelay(3))
		assert.Equal(t, 80*time.Second, b.NextDelay(4))
	})

	t.Run("CappedAtMax", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0))
		assert.Equal(t, 300*time.Second, b.NextDelay(6))
		assert.Equal(t, 300*time.Second, b.NextDelay(100))
	})

	t.Run("HugeAttemptIsSafe", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0))
		assert.Equal(t, 300*time.Second, b.NextDelay(1<<20))
	})

	t.Run("JitterStaysInBand", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0.5))
		for range 100 {
			d := b.NextDelay(1)
			assert.GreaterOrEqual(t, d, 5*time.Second)
			assert.LessOrEqual(t, d, 15*time.Second)
		}
	})

	t.Run("AttemptBelowOneNormalized", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(0))
		assert.Equal(t, b.NextDelay(1), b.NextDelay(0))
		assert.Equal(t, b.NextDelay(1), b.NextDelay(-5))
	})

	t.Run("MaxBelowInitialRaised", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(time.Minute),
			WithMaxDelay(time.Second),
			WithJitter(0),
		)
		assert.Equal(t, time.Minute, b.NextDelay(1))
	})
}

func TestLinearBackoff(t *testing.T) {
	t.Run("Progression", func(t *testing.T) {
		b := NewLinearBackoff(10*time.Second, 5*time.Second, time.Minute)
		assert.Equal(t, 10*time.Second, b.NextDelay(1))
		assert.Equal(t, 15*time.Second, b.NextDelay(2))
		assert.Equal(t, 25*time.Second, b.NextDelay(4))
		assert.Equal(t, time.Minute, b.NextDelay(100))
	})

	t.Run("OverflowGuard", func(t *testing.T) {
		b := NewLinearBackoff(time.Second, time.Hour, 2*time.Hour)
		assert.Equal(t, 2*time.Hour, b.NextDelay(1<<40))
	})

	t.Run("NegativeInputsClamped", func(t *testing.T) {
		b := NewLinearBackoff(-time.Second, -time.Second, -time.Second)
		assert.Equal(t, time.Duration(0), b.NextDelay(1))
	})
}

func TestNoBackoff(t *testing.T) {
	b := NewNoBackoff()
	assert.Equal(t, time.Duration(0), b.NextDelay(1))
	assert.Equal(t, time.Duration(0), b.NextDelay(99))
}
