package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")

func TestDoFixed_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := DoFixed(func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, 10, time.Millisecond, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoFixed_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := DoFixed(func() error {
		calls++
		return errTransient
	}, 10, time.Millisecond, func(error) bool { return true })

	require.Error(t, err)
	assert.Equal(t, 10, calls)
}

func TestDoFixed_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("unauthorized")
	err := DoFixed(func() error {
		calls++
		return fatal
	}, 10, time.Millisecond, func(err error) bool { return errors.Is(err, errTransient) })

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}
