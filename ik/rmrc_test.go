package ik

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/model/fake"
	"github.com/wojiaojiao/Pacer/state"
)

func TestSolvePositionConvergesOnReachableGoal(t *testing.T) {
	km := fake.NewKinematicModel(3)
	km.LinkOffsets["LF_foot"] = [3]float64{0.2, 0.1, -0.25}
	km.LinkAxes["LF_foot"] = [][3]float64{
		{0, 0.1, 0},
		{0.1, 0, 0},
		{0, 0, 0.1},
	}

	eef := model.EndEffector{ID: "LF", LinkID: "LF_foot", Chain: []int{0, 1, 2}}
	q := mat.NewVecDense(3, nil)

	goal := math3d.Vector3{X: 0.21, Y: 0.08, Z: -0.23}
	res, err := SolvePosition(km, eef, q, goal)
	require.NoError(t, err)
	assert.Less(t, res.Residual, PositionTolerance)
	assert.LessOrEqual(t, res.Iterations, MaxIterations)
}

func TestSolvePositionDivergesOnUnreachableChain(t *testing.T) {
	km := fake.NewKinematicModel(1)
	km.LinkOffsets["LF_foot"] = [3]float64{0.2, 0, -0.3}
	// A single-DOF chain along X can never close a Y/Z gap.
	km.LinkAxes["LF_foot"] = [][3]float64{{1, 0, 0}}

	eef := model.EndEffector{ID: "LF", LinkID: "LF_foot", Chain: []int{0}}
	q := mat.NewVecDense(1, nil)

	goal := math3d.Vector3{X: 0.2, Y: 5, Z: 5}
	_, err := SolvePosition(km, eef, q, goal)
	require.Error(t, err)
	assert.True(t, state.Is(err, state.IKDivergence))
}

func TestSolveVelocityRestrictsToChain(t *testing.T) {
	km := fake.NewKinematicModel(3)
	km.LinkOffsets["LF_foot"] = [3]float64{0.2, 0.1, -0.25}
	km.LinkAxes["LF_foot"] = [][3]float64{
		{0, 0.1, 0},
		{0.1, 0, 0},
		{0, 0, 0.1},
	}
	eef := model.EndEffector{ID: "LF", LinkID: "LF_foot", Chain: []int{0, 2}}
	q := mat.NewVecDense(3, nil)

	full, jf, err := SolveVelocity(km, eef, q, math3d.Vector3{X: 0.01})
	require.NoError(t, err)
	assert.Equal(t, 3, full.Len())
	assert.InDelta(t, 0, full.AtVec(1), 1e-12)
	r, c := jf.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
}
