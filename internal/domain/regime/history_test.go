package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for i, v := range []float64{10, 12, 14, 16} {
		h.Push(Sample{Value: v, Name: "calm", At: base.Add(time.Duration(i) * time.Minute)})
	}

	recent := h.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, 12.0, recent[0].Value)
	assert.Equal(t, 16.0, recent[2].Value)
}

func TestHistoryRateOfRise(t *testing.T) {
	h := NewHistory(8)
	assert.Zero(t, h.RateOfRise(4), "empty history has no trend")

	for _, v := range []float64{15, 18, 21, 24} {
		h.Push(Sample{Value: v})
	}
	assert.InDelta(t, 3.0, h.RateOfRise(4), 1e-9)
	assert.InDelta(t, 3.0, h.RateOfRise(2), 1e-9)

	// A falling index reads negative.
	h.Push(Sample{Value: 18})
	assert.InDelta(t, -6.0, h.RateOfRise(2), 1e-9)
}
