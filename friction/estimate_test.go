package friction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func identityProblem(ndof, nc int) Problem {
	m := mat.NewDense(ndof, ndof, nil)
	for i := 0; i < ndof; i++ {
		m.Set(i, i, 1)
	}
	return Problem{
		M:     m,
		FPrev: mat.NewVecDense(ndof, nil),
		N:     mat.NewDense(ndof, nc, nil),
		D:     mat.NewDense(ndof, nc*nk, nil),
		VPrev: mat.NewVecDense(ndof, nil),
		V:     mat.NewVecDense(ndof, nil),
		Dt:    0.01,
	}
}

func TestEstimateIsZeroWhenNoVelocityChangeObserved(t *testing.T) {
	p := identityProblem(7, 1)

	r, err := Estimate(p)
	require.NoError(t, err)

	assert.InDelta(t, 0, r.Cn[0], 1e-9)
	assert.InDelta(t, 0, r.S[0], 1e-9)
	assert.InDelta(t, 0, r.T[0], 1e-9)
	assert.True(t, math.IsNaN(r.Mu[0]))
}

func TestEstimateRecoversNormalAndTangentialImpulses(t *testing.T) {
	// N and the two [S T] directions each couple to a disjoint base
	// row, so the QP decouples into three independent 1-D problems and
	// Stage I alone is exact -- no null-space refinement needed.
	p := identityProblem(7, 1)
	p.N.Set(1, 0, 1)
	p.D.Set(2, 0, 1) // S direction (contactjac column i*nk+0)
	p.D.Set(3, 1, 1) // T direction (contactjac column i*nk+1)

	p.V.SetVec(1, 0.1)
	p.V.SetVec(2, 0.03)
	p.V.SetVec(3, 0.02)

	r, err := Estimate(p)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, r.Cn[0], 1e-6)
	assert.InDelta(t, 0.03, r.S[0], 1e-6)
	assert.InDelta(t, 0.02, r.T[0], 1e-6)

	wantMu := math.Sqrt(0.03*0.03+0.02*0.02) / 0.1
	assert.InDelta(t, wantMu, r.Mu[0], 1e-5)
}

func TestEstimateReturnsNaNMuWhenNormalImpulseIsNonPositive(t *testing.T) {
	// The tangential directions remain unconstrained even though the
	// desired normal impulse is negative (infeasible), so cn clamps to
	// its 0 boundary while S/T still resolve to their targets.
	p := identityProblem(7, 1)
	p.N.Set(1, 0, 1)
	p.D.Set(2, 0, 1)
	p.D.Set(3, 1, 1)

	p.V.SetVec(1, -0.05)
	p.V.SetVec(2, 0.03)
	p.V.SetVec(3, 0.02)

	r, err := Estimate(p)
	require.NoError(t, err)

	assert.InDelta(t, 0, r.Cn[0], 1e-6)
	assert.InDelta(t, 0.03, r.S[0], 1e-6)
	assert.InDelta(t, 0.02, r.T[0], 1e-6)
	assert.True(t, math.IsNaN(r.Mu[0]))
}
