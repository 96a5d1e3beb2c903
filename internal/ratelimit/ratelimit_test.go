package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_BurstThenThrottle(t *testing.T) {
	l := New(60) // 1 rps, burst 6

	for i := 0; i < 6; i++ {
		assert.True(t, l.Allow(), "burst token %d", i)
	}
	assert.False(t, l.Allow())
}

func TestNew_DisabledWhenNonPositive(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
}

func TestWait_RespectsContext(t *testing.T) {
	l := New(1)
	assert.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
}
