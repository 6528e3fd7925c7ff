package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 42 * time.Second, want: "42s"},
		{in: 90 * time.Second, want: "1m30s"},
		{in: 2*time.Hour + 5*time.Minute, want: "2h5m"},
		{in: 76 * time.Hour, want: "3d4h"},
		{in: 500 * time.Millisecond, want: "0s"},
		{in: -3 * time.Second, want: "-3s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortDuration(tt.in), "%v", tt.in)
	}
}

func TestFormatLayoutString(t *testing.T) {
	ts := time.Date(2024, 11, 20, 13, 55, 1, 0, time.Local)
	assert.Equal(t, "2024-11-20 13:55:01", FormatLayoutString(ts))
}
