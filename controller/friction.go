package controller

import (
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/friction"
	"github.com/wojiaojiao/Pacer/state"
)

// EstimateFriction recovers a per-contact Coulomb coefficient from the
// velocity a simulator reports after it has resolved contact impulses
// for the tick just committed, per spec.md §4.7: this is invoked
// post-contact, outside Tick's own PERCEPTION/PLANNING/CONTROL/WAITING
// order, using the inertia, external force, and contact Jacobians the
// most recent Tick's PERCEPTION step captured in Controller.scratch as
// the "before" state and postVelocities/postBaseTwist as the "after"
// state.
//
// Callers must not invoke this before at least one Tick has run, and
// must invoke it before the next Tick's perceive overwrites scratch.
func (c *Controller) EstimateFriction(postVelocities map[string]*mat.VecDense, postBaseTwist *mat.VecDense) (friction.Result, error) {
	if !c.Config.FrictionEstimation {
		return friction.Result{}, &state.Error{Kind: state.PhaseViolation, Op: "controller.EstimateFriction", Err: nil}
	}

	qd, err := c.Store.ToGeneralized(postVelocities)
	if err != nil {
		return friction.Result{}, err
	}
	vPost := fullVelocity(c.Store.NumJointDOFs(), qd, postBaseTwist)

	problem := friction.Problem{
		M:     c.scratch.M,
		FPrev: c.scratch.fext,
		N:     c.scratch.jac.N,
		D:     c.scratch.jac.D,
		VPrev: c.scratch.v,
		V:     vPost,
		Dt:    c.scratch.dt,
	}

	return friction.Estimate(problem)
}
