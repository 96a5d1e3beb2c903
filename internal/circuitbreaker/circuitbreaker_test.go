package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAndRejects(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	cb := circuitbreaker.New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	require.Error(t, err)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := circuitbreaker.New[string](circuitbreaker.DefaultConfig("ok"))
	got, err := cb.Execute(func() (string, error) { return "fine", nil })
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	assert.Equal(t, "ok", cb.Name())
}
