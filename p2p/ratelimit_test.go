package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateCounterAllowsUpToLimit(t *testing.T) {
	rc := NewRateCounter(3)
	assert.True(t, rc.Allow())
	assert.True(t, rc.Allow())
	assert.True(t, rc.Allow())
	assert.False(t, rc.Allow(), "a fourth message within the same window should be refused")
	assert.Equal(t, 4, rc.Count())
}

func TestRateCounterResetsOnNewWindow(t *testing.T) {
	rc := NewRateCounter(1)
	assert.True(t, rc.Allow())
	assert.False(t, rc.Allow())

	rc.window = 0 // force the next Allow to see an elapsed window
	assert.True(t, rc.Allow())
}
