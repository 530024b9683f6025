package idyn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLemkeTrivialFeasibleSolutionIsZero(t *testing.T) {
	m := [][]float64{{1, 0}, {0, 1}}
	q := []float64{2, 3}
	z, ok := lemke(m, q, 20)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0}, z)
}

func TestSolveQPUnconstrainedMinimumInsideFeasibleRegion(t *testing.T) {
	// minimize 0.5 z^2 - 5z s.t. z >= 0 -> optimum at z=5 (constraint
	// inactive).
	Q := mat.NewDense(1, 1, []float64{1})
	c := mat.NewVecDense(1, []float64{-5})
	A := mat.NewDense(1, 1, []float64{1})
	b := mat.NewVecDense(1, []float64{0})

	z, _, err := SolveQP(Q, c, A, b)
	require.NoError(t, err)
	assert.InDelta(t, 5, z.AtVec(0), 1e-6)
}

func TestSolveQPClampsToFeasibleBoundary(t *testing.T) {
	// minimize 0.5 z^2 + 5z s.t. z >= 0 -> unconstrained optimum at
	// z=-5 is infeasible, so the constrained optimum sits at z=0.
	Q := mat.NewDense(1, 1, []float64{1})
	c := mat.NewVecDense(1, []float64{5})
	A := mat.NewDense(1, 1, []float64{1})
	b := mat.NewVecDense(1, []float64{0})

	z, _, err := SolveQP(Q, c, A, b)
	require.NoError(t, err)
	assert.InDelta(t, 0, z.AtVec(0), 1e-6)
}

func TestNullSpaceOfRankDeficientMatrixIsNonEmpty(t *testing.T) {
	// rank-1 matrix [[1,1],[1,1]] has a 1-dimensional null space.
	Q := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	P := NullSpace(Q)
	_, m := P.Dims()
	assert.Equal(t, 1, m)
}

func TestNullSpaceOfFullRankMatrixIsEmpty(t *testing.T) {
	Q := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	P := NullSpace(Q)
	_, m := P.Dims()
	assert.Equal(t, 0, m)
}
