package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "00:00"},
		{"under a minute", 45, "00:45"},
		{"minutes", 150, "02:30"},
		{"rounds", 89.7, "01:30"},
		{"nan", math.NaN(), "Calculating..."},
		{"inf", math.Inf(1), "Calculating..."},
		{"negative", -3, "Calculating..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatETA(tt.seconds))
		})
	}
}

func TestEstimate(t *testing.T) {
	// 100 done in 10s leaves 900 to go at 10/s: 90s
	got := Estimate(1000, 100, 10*time.Second)
	assert.InDelta(t, 90, got, 0.001)

	assert.True(t, math.IsNaN(Estimate(1000, 0, time.Second)))
	assert.True(t, math.IsNaN(Estimate(1000, 10, 0)))
}

func TestUpdatePercent(t *testing.T) {
	assert.InDelta(t, 25.0, Update{Current: 25, Total: 100}.Percent(), 0.001)
	assert.Zero(t, Update{Current: 5, Total: 0}.Percent())
}
