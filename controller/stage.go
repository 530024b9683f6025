package controller

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/gait"
	"github.com/wojiaojiao/Pacer/idyn"
	"github.com/wojiaojiao/Pacer/ik"
	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/state"
)

// Stage is the capability contract every pipeline algorithm implements:
// Prepare copies what Run needs out of the store without mutating it,
// Run computes against that snapshot alone, and Commit applies the
// result back. This generalizes the teacher's own Component interface
// (Boot() error; Tick(time.Time) error) to one prepare/run/commit cycle
// per capability rather than one Tick per robot feature.
type Stage interface {
	Prepare(s *state.Store) (any, error)
	Run(scratch any) (any, error)
	Commit(s *state.Store, result any) error
}

// planningStage runs the gait scheduler and RMRC for every end effector
// when Config.Walk is set, and otherwise holds every foot where it is
// (holdStation), realizing spec.md §4.8 step 2.
type planningStage struct {
	c *Controller
}

type planningScratch struct {
	q, qd *mat.VecDense
	t     float64
	twist gait.Twist
}

type footPlan struct {
	eef   model.EndEffector
	ref   gait.FootRef
	q     *mat.VecDense // full joint solution after RMRC for this foot's chain
	qd    *mat.VecDense
	qdd   *mat.VecDense
	jf    *mat.Dense
	// stale is true if RMRC diverged for this foot. Its velocity and
	// acceleration goals are then zero and its position goal is the
	// measured joint position (or, when only the velocity solve
	// diverged, the converged RMRC position); the previous tick's
	// position goal is not reused.
	stale bool
}

type planningResult struct {
	feet []footPlan
}

func (p *planningStage) Prepare(s *state.Store) (any, error) {
	posByJoint := map[string]*mat.VecDense{}
	velByJoint := map[string]*mat.VecDense{}
	for _, j := range p.c.Joints {
		q, err := s.JointValue(state.Position, j.ID)
		if err != nil {
			return nil, err
		}
		qd, err := s.JointValue(state.Velocity, j.ID)
		if err != nil {
			return nil, err
		}
		posByJoint[j.ID] = q
		velByJoint[j.ID] = qd
	}
	q, err := s.ToGeneralized(posByJoint)
	if err != nil {
		return nil, err
	}
	qd, err := s.ToGeneralized(velByJoint)
	if err != nil {
		return nil, err
	}
	return planningScratch{q: q, qd: qd, t: p.c.elapsed, twist: p.c.Config.Twist()}, nil
}

func (p *planningStage) Run(scratch any) (any, error) {
	sc := scratch.(planningScratch)

	if !p.c.Config.Walk {
		return p.holdStation(sc)
	}

	refs, err := p.c.planner.Plan(sc.t, sc.twist)
	if err != nil {
		return nil, err
	}

	feet := make([]footPlan, len(p.c.EEFs))
	for i, eef := range p.c.EEFs {
		ref := refs[i]

		res, err := ik.SolvePosition(p.c.KM, eef, sc.q, ref.Pos)
		if err != nil {
			if state.Is(err, state.IKDivergence) {
				log.WithField("eef", eef.ID).Warn("controller: RMRC diverged, holding measured position")
				feet[i] = footPlan{eef: eef, ref: ref, q: sc.q, qd: mat.NewVecDense(sc.q.Len(), nil), qdd: mat.NewVecDense(sc.q.Len(), nil), jf: p.c.prevJf[eef.ID], stale: true}
				continue
			}
			return nil, err
		}

		dq, jf, err := ik.SolveVelocity(p.c.KM, eef, res.Q, ref.Vel)
		if err != nil {
			if state.Is(err, state.IKDivergence) {
				log.WithField("eef", eef.ID).Warn("controller: RMRC velocity solve diverged, zeroing velocity goal")
				feet[i] = footPlan{eef: eef, ref: ref, q: res.Q, qd: mat.NewVecDense(sc.q.Len(), nil), qdd: mat.NewVecDense(sc.q.Len(), nil), jf: p.c.prevJf[eef.ID], stale: true}
				continue
			}
			return nil, err
		}

		jfPrev := p.c.prevJf[eef.ID]
		if jfPrev == nil {
			jfPrev = jf
		}
		qdChain := chainSubset(dq, eef.Chain)
		acc, err := ik.SolveAcceleration(eef, qdChain, jf, jfPrev, p.c.Config.StepSize, ref.Acc)
		qdd := mat.NewVecDense(sc.q.Len(), nil)
		if err == nil {
			scatterChain(qdd, eef.Chain, acc)
		}

		feet[i] = footPlan{eef: eef, ref: ref, q: res.Q, qd: dq, qdd: qdd, jf: jf}
	}

	return planningResult{feet: feet}, nil
}

// holdStation implements spec.md §4.8 step 2's "otherwise hold
// station" branch: every foot stays planted where it already is,
// with zero commanded velocity and acceleration, rather than running
// the gait scheduler and RMRC toward a moving foot reference.
func (p *planningStage) holdStation(sc planningScratch) (any, error) {
	feet := make([]footPlan, len(p.c.EEFs))
	for i, eef := range p.c.EEFs {
		pose, err := p.c.KM.LinkPose(eef.LinkID)
		if err != nil {
			return nil, err
		}
		ref := gait.FootRef{
			Pos:    math3d.Vector3{X: pose.T[0], Y: pose.T[1], Z: pose.T[2]},
			Stance: true,
		}

		dq, jf, err := ik.SolveVelocity(p.c.KM, eef, sc.q, math3d.Vector3{})
		if err != nil {
			return nil, err
		}

		feet[i] = footPlan{
			eef: eef, ref: ref,
			q: sc.q, qd: dq, qdd: mat.NewVecDense(sc.q.Len(), nil),
			jf: jf,
		}
	}
	return planningResult{feet: feet}, nil
}

func (p *planningStage) Commit(s *state.Store, result any) error {
	r := result.(planningResult)

	qDes := mat.NewVecDense(p.c.Store.NumJointDOFs(), nil)
	qdDes := mat.NewVecDense(p.c.Store.NumJointDOFs(), nil)
	qddDes := mat.NewVecDense(p.c.Store.NumJointDOFs(), nil)

	for i, fp := range r.feet {
		for _, idx := range fp.eef.Chain {
			qDes.SetVec(idx, fp.q.AtVec(idx))
			qdDes.SetVec(idx, fp.qd.AtVec(idx))
			qddDes.SetVec(idx, fp.qdd.AtVec(idx))
		}

		s.SetFootState(fp.eef.ID, state.FootState{
			Position:     [3]float64{fp.ref.Pos.X, fp.ref.Pos.Y, fp.ref.Pos.Z},
			Velocity:     [3]float64{fp.ref.Vel.X, fp.ref.Vel.Y, fp.ref.Vel.Z},
			Acceleration: [3]float64{fp.ref.Acc.X, fp.ref.Acc.Y, fp.ref.Acc.Z},
			Stance:       fp.ref.Stance,
			Active:       fp.eef.Active,
		})

		p.c.EEFs[i].Stance = fp.ref.Stance
		if !fp.stale {
			p.c.prevJf[fp.eef.ID] = fp.jf
		}
	}

	posMap, err := s.FromGeneralized(qDes)
	if err != nil {
		return err
	}
	velMap, err := s.FromGeneralized(qdDes)
	if err != nil {
		return err
	}
	accMap, err := s.FromGeneralized(qddDes)
	if err != nil {
		return err
	}
	for _, j := range p.c.Joints {
		if err := s.SetJointValue(state.PositionGoal, j.ID, posMap[j.ID]); err != nil {
			return err
		}
		if err := s.SetJointValue(state.VelocityGoal, j.ID, velMap[j.ID]); err != nil {
			return err
		}
		if err := s.SetJointValue(state.AccelerationGoal, j.ID, accMap[j.ID]); err != nil {
			return err
		}
	}
	return nil
}

// controlStage runs the PID feedback loop and, when enabled, constrained
// inverse dynamics, realizing spec.md §4.8 step 3.
type controlStage struct {
	c *Controller
}

type controlScratch struct {
	q, qd, qDes, qdDes, qddDes *mat.VecDense
	v, fext                    *mat.VecDense
	M, N, D                    *mat.Dense
	dt                         float64
}

type controlResult struct {
	tau map[string]float64
	cn  []float64
}

func (p *controlStage) Prepare(s *state.Store) (any, error) {
	posByJoint := map[string]*mat.VecDense{}
	velByJoint := map[string]*mat.VecDense{}
	posGoalByJoint := map[string]*mat.VecDense{}
	velGoalByJoint := map[string]*mat.VecDense{}
	accGoalByJoint := map[string]*mat.VecDense{}
	for _, j := range p.c.Joints {
		var err error
		if posByJoint[j.ID], err = s.JointValue(state.Position, j.ID); err != nil {
			return nil, err
		}
		if velByJoint[j.ID], err = s.JointValue(state.Velocity, j.ID); err != nil {
			return nil, err
		}
		if posGoalByJoint[j.ID], err = s.JointValue(state.PositionGoal, j.ID); err != nil {
			return nil, err
		}
		if velGoalByJoint[j.ID], err = s.JointValue(state.VelocityGoal, j.ID); err != nil {
			return nil, err
		}
		if accGoalByJoint[j.ID], err = s.JointValue(state.AccelerationGoal, j.ID); err != nil {
			return nil, err
		}
	}

	q, err := s.ToGeneralized(posByJoint)
	if err != nil {
		return nil, err
	}
	qd, err := s.ToGeneralized(velByJoint)
	if err != nil {
		return nil, err
	}
	qDes, err := s.ToGeneralized(posGoalByJoint)
	if err != nil {
		return nil, err
	}
	qdDes, err := s.ToGeneralized(velGoalByJoint)
	if err != nil {
		return nil, err
	}
	qddDes, err := s.ToGeneralized(accGoalByJoint)
	if err != nil {
		return nil, err
	}

	return controlScratch{
		q: q, qd: qd, qDes: qDes, qdDes: qdDes, qddDes: qddDes,
		v: p.c.scratch.v, fext: p.c.scratch.fext,
		M: p.c.scratch.M, N: p.c.scratch.jac.N, D: p.c.scratch.jac.D,
		dt: p.c.scratch.dt,
	}, nil
}

func (p *controlStage) Run(scratch any) (any, error) {
	sc := scratch.(controlScratch)

	tau := map[string]float64{}
	for _, j := range p.c.Joints {
		for _, idx := range j.Coords {
			ufb := p.c.pid.Step(j, sc.q.AtVec(idx), sc.qd.AtVec(idx), sc.qDes.AtVec(idx), sc.qdDes.AtVec(idx), sc.dt)
			tau[j.ID] += ufb
		}
	}

	var cn []float64
	if p.c.Config.ControlIDYN {
		vplus := mat.NewVecDense(sc.v.Len(), nil)
		vplus.CopyVec(sc.v)
		for _, j := range p.c.Joints {
			for _, idx := range j.Coords {
				vplus.SetVec(idx, sc.v.AtVec(idx)+sc.qddDes.AtVec(idx)*sc.dt)
			}
		}

		deadline := time.Time{}
		if p.c.Config.IDYNBudget > 0 {
			deadline = time.Now().Add(p.c.Config.IDYNBudget)
		}

		problem := idyn.Problem{
			M: sc.M, Fext: sc.fext, N: sc.N, D: sc.D,
			V: sc.v, VPlus: vplus,
			Dt: sc.dt, NumJointDOFs: p.c.Store.NumJointDOFs(),
			Deadline: deadline,
		}

		start := time.Now()
		sol, err := idyn.Solve(problem)
		p.c.metrics.IDYNSolveSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			if state.Is(err, state.LCPUnsolvable) || state.Is(err, state.DeadlineExceeded) {
				if state.Is(err, state.DeadlineExceeded) {
					p.c.metrics.IDYNOverBudget.Inc()
				}
				log.WithError(err).Warn("controller: IDYN unavailable this tick, falling back to PID-only")
			} else {
				return nil, err
			}
		} else {
			if sol.Regularized {
				p.c.metrics.LCPRegularized.Inc()
			}
			cn = sol.Cn
			for _, j := range p.c.Joints {
				for _, idx := range j.Coords {
					tau[j.ID] += p.c.Config.AlphaIDYN * sol.Tau.AtVec(idx)
				}
			}
		}
	}

	for _, j := range p.c.Joints {
		if j.TorqueLimit > 0 {
			if tau[j.ID] > j.TorqueLimit {
				tau[j.ID] = j.TorqueLimit
			} else if tau[j.ID] < -j.TorqueLimit {
				tau[j.ID] = -j.TorqueLimit
			}
		}
	}

	return controlResult{tau: tau, cn: cn}, nil
}

func (p *controlStage) Commit(s *state.Store, result any) error {
	r := result.(controlResult)
	for _, j := range p.c.Joints {
		if err := s.SetJointValue(state.LoadGoal, j.ID, mat.NewVecDense(1, []float64{r.tau[j.ID]})); err != nil {
			return err
		}
	}
	return nil
}

// chainSubset extracts the entries of full at the chain's indices, in
// chain order.
func chainSubset(full *mat.VecDense, chain []int) *mat.VecDense {
	out := mat.NewVecDense(len(chain), nil)
	for i, idx := range chain {
		out.SetVec(i, full.AtVec(idx))
	}
	return out
}

// scatterChain writes a chain-ordered vector back into a full-length
// one at the chain's indices.
func scatterChain(full *mat.VecDense, chain []int, v *mat.VecDense) {
	for i, idx := range chain {
		full.SetVec(idx, v.AtVec(i))
	}
}
