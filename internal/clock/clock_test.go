package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedTodayTruncatesToMidnight(t *testing.T) {
	at := time.Date(2026, 2, 12, 19, 30, 0, 0, time.UTC)
	c := NewFixed(at)
	require.Equal(t, time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), c.Today())
	require.Equal(t, at, c.Now())
}

func TestAdvancingStepsForward(t *testing.T) {
	start := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	c := NewAdvancing(start, time.Hour)
	require.Equal(t, start, c.Now())
	require.Equal(t, start.Add(time.Hour), c.Now())
}
