// Package ik implements resolved-motion-rate control: iterative,
// damped-least-squares inverse kinematics for a single end effector
// against its kinematic chain.
//
// Grounded on spec.md §4.4; the teacher's own geometric (law-of-
// cosines) leg solver (components/legs/leg.go) is not reused directly
// -- RMRC needs a general NDOF chain, not a fixed 3-joint leg -- but
// its damped update-and-converge loop shape is the same idiom.
package ik

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/state"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "ik"})

const (
	// MaxIterations is K in spec.md §4.4.
	MaxIterations = 100

	// PositionTolerance is TOL.
	PositionTolerance = 1e-4

	// DampingLambda is the diagonal damping term of the pseudo-inverse.
	DampingLambda = 1e-6
)

// Result is the outcome of a converged solve: the full joint vector
// and the number of iterations it took.
type Result struct {
	Q          *mat.VecDense
	Iterations int
	Residual   float64
}

// SolvePosition finds q* such that the end effector's world position
// converges to goal, starting from q (length km.NumJointDOFs()) and
// only perturbing the coordinates named in eef.Chain. q is not
// mutated; the result is returned as a new vector.
func SolvePosition(km model.KinematicModel, eef model.EndEffector, q *mat.VecDense, goal math3d.Vector3) (Result, error) {
	qOut := mat.NewVecDense(q.Len(), nil)
	qOut.CopyVec(q)

	prevResidual := math.Inf(1)
	alpha := 1.0

	for iter := 0; iter < MaxIterations; iter++ {
		if err := pushCoordinates(km, qOut); err != nil {
			return Result{}, err
		}

		pose, err := km.LinkPose(eef.LinkID)
		if err != nil {
			return Result{}, err
		}
		cur := math3d.Vector3{X: pose.T[0], Y: pose.T[1], Z: pose.T[2]}
		e := goal.Subtract(cur)
		residual := e.Magnitude()

		if residual < PositionTolerance {
			return Result{Q: qOut, Iterations: iter, Residual: residual}, nil
		}

		j, err := km.PointJacobian(eef.LinkID, pose.T)
		if err != nil {
			return Result{}, err
		}
		jf := chainJacobian(j, eef.Chain)

		dq, err := dampedPInv(jf, e)
		if err != nil {
			return Result{}, err
		}

		if residual >= prevResidual {
			alpha = 0.5
		} else {
			alpha = 1.0
		}
		for i, idx := range eef.Chain {
			qOut.SetVec(idx, qOut.AtVec(idx)+alpha*dq.AtVec(i))
		}
		prevResidual = residual
	}

	log.WithFields(logrus.Fields{"eef": eef.ID}).Warn("RMRC exhausted iteration budget")
	return Result{}, &state.Error{Kind: state.IKDivergence, Op: "ik.SolvePosition"}
}

// SolveVelocity maps a desired Cartesian velocity through the foot
// Jacobian's damped pseudo-inverse to a joint-velocity command,
// restricted to eef.Chain.
func SolveVelocity(km model.KinematicModel, eef model.EndEffector, q *mat.VecDense, velGoal math3d.Vector3) (*mat.VecDense, *mat.Dense, error) {
	if err := pushCoordinates(km, q); err != nil {
		return nil, nil, err
	}
	pose, err := km.LinkPose(eef.LinkID)
	if err != nil {
		return nil, nil, err
	}
	j, err := km.PointJacobian(eef.LinkID, pose.T)
	if err != nil {
		return nil, nil, err
	}
	jf := chainJacobian(j, eef.Chain)

	dq, err := dampedPInv(jf, velGoal)
	if err != nil {
		return nil, nil, err
	}

	full := mat.NewVecDense(q.Len(), nil)
	for i, idx := range eef.Chain {
		full.SetVec(idx, dq.AtVec(i))
	}
	return full, jf, nil
}

// SolveAcceleration maps a desired Cartesian acceleration through the
// same Jacobian, subtracting the Coriolis-like term Jdot.qdot where
// Jdot is approximated by finite difference of jf against jfPrev
// (spec.md §4.4).
func SolveAcceleration(eef model.EndEffector, qdotChain *mat.VecDense, jf, jfPrev *mat.Dense, dt float64, accGoal math3d.Vector3) (*mat.VecDense, error) {
	rows, cols := jf.Dims()
	jdot := mat.NewDense(rows, cols, nil)
	jdot.Sub(jf, jfPrev)
	jdot.Scale(1/dt, jdot)

	var jdotQdot mat.VecDense
	jdotQdot.MulVec(jdot, qdotChain)

	rhs := math3d.Vector3{
		X: accGoal.X - jdotQdot.AtVec(0),
		Y: accGoal.Y - jdotQdot.AtVec(1),
		Z: accGoal.Z - jdotQdot.AtVec(2),
	}

	return dampedPInv(jf, rhs)
}

func pushCoordinates(km model.KinematicModel, q *mat.VecDense) error {
	if err := km.SetGeneralizedCoordinates(q); err != nil {
		return err
	}
	return km.UpdateLinkPoses()
}

// chainJacobian extracts the 3 x len(chain) linear-velocity block of
// the 6xNDOF point Jacobian, restricted to the chain's columns.
func chainJacobian(j *mat.Dense, chain []int) *mat.Dense {
	out := mat.NewDense(3, len(chain), nil)
	for col, idx := range chain {
		for row := 0; row < 3; row++ {
			out.Set(row, col, j.At(row, idx))
		}
	}
	return out
}

// dampedPInv solves dq = Jf^T . (Jf.Jf^T + lambda.I)^-1 . e, the
// damped-least-squares right pseudo-inverse (spec.md §4.4).
func dampedPInv(jf *mat.Dense, e math3d.Vector3) (*mat.VecDense, error) {
	rows, _ := jf.Dims()
	if rows != 3 {
		return nil, &state.Error{Kind: state.DOFMismatch, Op: "ik.dampedPInv"}
	}

	var jjt mat.Dense
	jjt.Mul(jf, jf.T())
	for i := 0; i < rows; i++ {
		jjt.Set(i, i, jjt.At(i, i)+DampingLambda)
	}

	evec := mat.NewVecDense(3, []float64{e.X, e.Y, e.Z})

	var y mat.VecDense
	if err := y.SolveVec(&jjt, evec); err != nil {
		return nil, &state.Error{Kind: state.IKDivergence, Op: "ik.dampedPInv", Err: err}
	}

	var dq mat.VecDense
	dq.MulVec(jf.T(), &y)
	return &dq, nil
}
