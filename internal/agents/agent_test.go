package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsClamp(t *testing.T) {
	s := Stats{Energy: 120, Satiety: -5, Social: 50}
	s.Clamp()
	assert.Equal(t, Stats{Energy: 100, Satiety: 0, Social: 50}, s)
}

func TestStatsAdjust(t *testing.T) {
	s := Stats{Energy: 10, Satiety: 95, Social: 50}
	s.Adjust(-20, +10, +5)
	assert.Equal(t, Stats{Energy: 0, Satiety: 100, Social: 55}, s)
}

func TestAnyLow(t *testing.T) {
	assert.False(t, Stats{Energy: 25, Satiety: 25, Social: 25}.AnyLow(), "threshold is exclusive")
	assert.True(t, Stats{Energy: 24, Satiety: 80, Social: 80}.AnyLow())
	assert.True(t, Stats{Energy: 80, Satiety: 80, Social: 0}.AnyLow())
}
