package idyn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/state"
)

func identityProblem(ndof, numJointDOFs, nc int) Problem {
	m := mat.NewDense(ndof, ndof, nil)
	for i := 0; i < ndof; i++ {
		m.Set(i, i, 1)
	}
	return Problem{
		M:            m,
		Fext:         mat.NewVecDense(ndof, nil),
		N:            mat.NewDense(ndof, nc, nil),
		D:            mat.NewDense(ndof, nc*NK, nil),
		V:            mat.NewVecDense(ndof, nil),
		VPlus:        mat.NewVecDense(ndof, nil),
		Dt:           0.01,
		NumJointDOFs: numJointDOFs,
	}
}

func TestSolveIsZeroWhenNoVelocityChangeIsNeeded(t *testing.T) {
	// V == VPlus and Fext == 0: the Newton-Euler balance is already
	// satisfied with no contact force at all.
	p := identityProblem(7, 1, 1)

	sol, err := Solve(p)
	require.NoError(t, err)

	assert.InDelta(t, 0, sol.Cn[0], 1e-9)
	for _, b := range sol.Beta {
		assert.InDelta(t, 0, b, 1e-9)
	}
	assert.InDelta(t, 0, sol.Tau.AtVec(0), 1e-9)
}

func TestSolveRecoversNormalForceAgainstExternalLoad(t *testing.T) {
	// One joint DOF (row 0), six base rows (1..6). A downward external
	// force on base row 1 must be cancelled by the contact normal
	// force for the robot to hold V == VPlus == 0 (stand still).
	p := identityProblem(7, 1, 1)
	p.Fext.SetVec(1, -10)
	p.N.Set(1, 0, 1) // contact normal couples only to base row 1

	sol, err := Solve(p)
	require.NoError(t, err)

	// impulse needed to cancel 10N over Dt=0.01s is 0.1, supplied
	// entirely by cn since N's only nonzero row is the one under load.
	assert.InDelta(t, 0.1, sol.Cn[0], 1e-4)
	for _, b := range sol.Beta {
		assert.GreaterOrEqual(t, b, -1e-6)
	}
	// joint 0 has no coupling to the contact or the external load, so
	// it needs no torque to hold position.
	assert.InDelta(t, 0, sol.Tau.AtVec(0), 1e-4)
}

func TestSolveSeparatesFrictionPyramidFromNormalDirection(t *testing.T) {
	// Friction-pyramid columns that are antipodal pairs in disjoint
	// base rows from the normal direction: the net tangential impulse
	// (beta0-beta1) must match the commanded lateral change, while
	// cn independently matches the normal-direction change.
	p := identityProblem(7, 1, 1)
	p.N.Set(1, 0, 1)
	p.D.Set(2, 0, 1)
	p.D.Set(2, 1, -1)
	p.D.Set(3, 2, 1)
	p.D.Set(3, 3, -1)

	p.VPlus.SetVec(1, 0.1) // normal-direction velocity change
	p.VPlus.SetVec(2, 0.04) // lateral velocity change along the D0/D1 pair

	sol, err := Solve(p)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, sol.Cn[0], 1e-4)
	assert.InDelta(t, 0.04, sol.Beta[0]-sol.Beta[1], 1e-4)
	assert.InDelta(t, 0, sol.Beta[2]-sol.Beta[3], 1e-4)
	for _, b := range sol.Beta {
		assert.GreaterOrEqual(t, b, -1e-6)
	}
}

func TestSolveRejectsNonSPDInertia(t *testing.T) {
	p := identityProblem(7, 1, 1)
	p.M = mat.NewDense(7, 7, nil) // all-zero: not positive definite

	_, err := Solve(p)
	require.Error(t, err)
	assert.True(t, state.Is(err, state.SingularInertia))
}

func TestSolveReturnsDeadlineExceededPastDeadline(t *testing.T) {
	p := identityProblem(7, 1, 1)
	p.Fext.SetVec(1, -10)
	p.N.Set(1, 0, 1)
	p.Deadline = time.Now().Add(-time.Hour)

	_, err := Solve(p)
	require.Error(t, err)
	assert.True(t, state.Is(err, state.DeadlineExceeded))
}
