package gait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojiaojiao/Pacer/math3d"
)

func originsAt(x, y float64) []math3d.Vector3 {
	return []math3d.Vector3{
		{X: x, Y: y},
		{X: x, Y: -y},
		{X: -x, Y: y},
		{X: -x, Y: -y},
	}
}

func TestNamedResolvesBuiltinTables(t *testing.T) {
	for _, name := range []string{"trot", "trot2", "walk", "walk2"} {
		d, ok := Named(name)
		assert.True(t, ok, name)
		assert.Equal(t, 4, d.NumFeet(), name)
	}
	_, ok := Named("bogus")
	assert.False(t, ok)
}

func TestPlanZeroTwistHoldsStanceFeetAtOrigin(t *testing.T) {
	p, err := NewPlanner(Trot, originsAt(0.2, 0.15), 0.1, 0.02)
	require.NoError(t, err)

	refs, err := p.Plan(0.03, Twist{})
	require.NoError(t, err)
	require.Len(t, refs, 4)
	for i, ref := range refs {
		if !ref.Stance {
			continue
		}
		assert.InDelta(t, p.Origins[i].X, ref.Pos.X, 1e-9)
		assert.InDelta(t, p.Origins[i].Y, ref.Pos.Y, 1e-9)
		assert.InDelta(t, 0, ref.Pos.Z, 1e-9)
		assert.InDelta(t, 0, ref.Vel.Magnitude(), 1e-9)
	}
}

func TestPlanTrotAlternatesDiagonalPairs(t *testing.T) {
	p, err := NewPlanner(Trot, originsAt(0.2, 0.15), 0.1, 0.02)
	require.NoError(t, err)

	refs0, err := p.Plan(0.01, Twist{Vx: 0.2})
	require.NoError(t, err)
	assert.True(t, refs0[FootLF].Stance)
	assert.False(t, refs0[FootRF].Stance)
	assert.False(t, refs0[FootLH].Stance)
	assert.True(t, refs0[FootRH].Stance)

	refs1, err := p.Plan(0.11, Twist{Vx: 0.2})
	require.NoError(t, err)
	assert.False(t, refs1[FootLF].Stance)
	assert.True(t, refs1[FootRF].Stance)
	assert.True(t, refs1[FootLH].Stance)
	assert.False(t, refs1[FootRH].Stance)
}

func TestSwingFootPeaksAtMidStrideHeight(t *testing.T) {
	p, err := NewPlanner(Trot, originsAt(0.2, 0.15), 0.1, 0.02)
	require.NoError(t, err)

	// Mid-way through the swing bucket for RF (row 0 spans t in [0,0.1)).
	refs, err := p.Plan(0.05, Twist{Vx: 0.2})
	require.NoError(t, err)
	assert.InDelta(t, p.StepHeight, refs[FootRF].Pos.Z, 1e-9)
	assert.InDelta(t, 0, refs[FootRF].Vel.Z, 1e-6)
}

func TestSwingFootStartsAndEndsAtGroundLevel(t *testing.T) {
	p, err := NewPlanner(Trot, originsAt(0.2, 0.15), 0.1, 0.02)
	require.NoError(t, err)

	start, err := p.Plan(0.0001, Twist{Vx: 0.2})
	require.NoError(t, err)
	end, err := p.Plan(0.0999, Twist{Vx: 0.2})
	require.NoError(t, err)

	assert.InDelta(t, 0, start[FootRF].Pos.Z, 1e-3)
	assert.InDelta(t, 0, end[FootRF].Pos.Z, 1e-3)
}

func TestNewPlannerRejectsMismatchedOrigins(t *testing.T) {
	_, err := NewPlanner(Trot, originsAt(0.2, 0.15)[:2], 0.1, 0.02)
	assert.Error(t, err)
}

func TestNewPlannerRejectsNonPositivePhaseTime(t *testing.T) {
	_, err := NewPlanner(Trot, originsAt(0.2, 0.15), 0, 0.02)
	assert.Error(t, err)
}
