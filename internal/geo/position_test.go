package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_Symmetric(t *testing.T) {
	a := Position{X: 10, Y: 40}
	b := Position{X: 30, Y: 5}
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistance_TriangleInequality(t *testing.T) {
	a := Position{X: 0, Y: 0}
	b := Position{X: 50, Y: 20}
	c := Position{X: 100, Y: 100}
	assert.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c))
}

func TestDistance_Zero(t *testing.T) {
	p := Position{X: 12, Y: 34}
	assert.Equal(t, uint32(0), Distance(p, p))
}

func TestDistance_OutOfGridIsInfinite(t *testing.T) {
	require.True(t, Infinity.IsInfinity())
	assert.Equal(t, uint32(1<<32-1), Distance(Infinity, Position{X: 1, Y: 1}))
	assert.Equal(t, uint32(1<<32-1), Distance(Position{X: GridMax + 1, Y: 0}, Position{X: 0, Y: 0}))
}

func TestStepToward_ClampsToRemainingDelta(t *testing.T) {
	cur := Position{X: 0, Y: 0}
	target := Position{X: 5, Y: 100}
	got := StepToward(cur, target, func(remaining uint32) uint32 { return 9999 })
	assert.Equal(t, target, got)
}

func TestStepToward_AlreadyThereIsNoop(t *testing.T) {
	p := Position{X: 7, Y: 7}
	got := StepToward(p, p, func(remaining uint32) uint32 { return 3 })
	assert.Equal(t, p, got)
}

func TestDrift_ClampsToGrid(t *testing.T) {
	got := Drift(Position{X: 0, Y: GridMax}, -50, 50)
	assert.Equal(t, Position{X: 0, Y: GridMax}, got)
}
