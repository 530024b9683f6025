// Package controller orchestrates one tick of the locomotion and
// whole-body-control pipeline: PERCEPTION, PLANNING, CONTROL, WAITING,
// per spec.md §4.8. It owns no domain algorithm itself -- every stage
// is implemented by gait, ik, pid, idyn, and contactjac -- and instead
// sequences them against a state.Store under a fixed configuration.
//
// Grounded on the teacher's own Component/Boot/Tick shape
// (hexapod.go), generalized from one Tick per robot feature to the
// prepare/run/commit Stage contract of SPEC_FULL.md §9.
package controller

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/contactjac"
	"github.com/wojiaojiao/Pacer/gait"
	"github.com/wojiaojiao/Pacer/internal/telemetry"
	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/pid"
	"github.com/wojiaojiao/Pacer/state"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "controller"})

// Input is one tick's sensor feed, per spec.md §6 "Sensor input".
type Input struct {
	JointPositions  map[string]*mat.VecDense
	JointVelocities map[string]*mat.VecDense
	BasePose        *mat.VecDense // length state.NEuler (7)
	BaseTwist       *mat.VecDense // length state.NSpatial (6)
	Contacts        []state.Contact
	Dt              float64
}

// Output is one tick's command, per spec.md §6 "Command output".
type Output struct {
	TickID  uuid.UUID
	Torques map[string]float64
	Faulted bool
}

// perceptionScratch holds what PERCEPTION assembles and CONTROL later
// consumes, so CONTROL never re-queries the kinematic model mid-tick.
type perceptionScratch struct {
	M      *mat.Dense
	fext   *mat.VecDense
	v      *mat.VecDense // current generalized velocity (joints + base)
	jac    contactjac.Jacobians
	dt     float64
	com    model.Pose
	comVel [3]float64
}

// Controller runs the four-step tick of spec.md §4.8 against a single
// robot description.
type Controller struct {
	KM     model.KinematicModel
	Joints []model.Joint
	EEFs   []model.EndEffector
	Links  []model.Link
	Store  *state.Store
	Config Config

	planner *gait.Planner
	pid     *pid.Controller

	planning *planningStage
	control  *controlStage

	metrics *telemetry.Metrics

	// Faulted latches true on any fatal error; a faulted controller
	// commands zero torque on every subsequent tick until reset.
	Faulted bool

	elapsed float64 // sim clock driving gait.Planner.Plan

	qdotPrev map[string]*mat.VecDense
	prevJf   map[string]*mat.Dense

	prevCoM   *model.Pose
	prevCoMOK bool

	scratch perceptionScratch
}

// NewController wires a Controller from a robot description. Joints'
// Coords fields are overwritten with generalized-coordinate indices
// assigned in slice order -- callers only need Coords to have the
// right length (the joint's DOF count) going in.
func NewController(km model.KinematicModel, joints []model.Joint, eefs []model.EndEffector, links []model.Link, store *state.Store, cfg Config) (*Controller, error) {
	idx := 0
	for i := range joints {
		n := len(joints[i].Coords)
		if n == 0 {
			n = 1
		}
		coords := make([]int, n)
		for j := range coords {
			coords[j] = idx + j
		}
		joints[i].Coords = coords
		if jc, ok := cfg.Joints[joints[i].ID]; ok {
			joints[i].Gains = model.PIDGains{Kp: jc.Kp, Kv: jc.Kv, Ki: jc.Ki, AntiWindup: jc.AntiWindup}
			joints[i].TorqueLimit = jc.TorqueLimit
			joints[i].Home = jc.Q0
		}
		store.AddJoint(joints[i].ID, n)
		idx += n
	}
	store.Compile()

	planner, err := gait.NewPlanner(cfg.gaitDescriptor(), footOrigins(eefs), cfg.PhaseTime, cfg.StepHeight)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		KM: km, Joints: joints, EEFs: eefs, Links: links, Store: store, Config: cfg,
		planner:  planner,
		pid:      pid.NewController(),
		metrics:  telemetry.New(),
		qdotPrev: map[string]*mat.VecDense{},
		prevJf:   map[string]*mat.Dense{},
	}
	c.planning = &planningStage{c: c}
	c.control = &controlStage{c: c}
	return c, nil
}

// Tick runs PERCEPTION, PLANNING, CONTROL, WAITING in order and returns
// the commanded torque. A fatal error latches Faulted and halts.
func (c *Controller) Tick(in Input) (Output, error) {
	tickID := uuid.New()
	start := time.Now()
	defer func() { c.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	if c.Faulted {
		return c.haltOutput(tickID), nil
	}

	if err := c.perceive(in); err != nil {
		return c.fail(tickID, err)
	}

	planScratch, err := c.planning.Prepare(c.Store)
	if err != nil {
		return c.fail(tickID, err)
	}
	planResult, err := c.planning.Run(planScratch)
	if err != nil {
		return c.fail(tickID, err)
	}
	if err := c.planning.Commit(c.Store, planResult); err != nil {
		return c.fail(tickID, err)
	}

	if c.Config.TrunkStabilization {
		if err := c.applyTrunkStabilizer(); err != nil {
			return c.fail(tickID, err)
		}
	}

	controlScratchVal, err := c.control.Prepare(c.Store)
	if err != nil {
		return c.fail(tickID, err)
	}
	controlResultVal, err := c.control.Run(controlScratchVal)
	if err != nil {
		return c.fail(tickID, err)
	}
	res := controlResultVal.(controlResult)
	if !allFinite(res.tau) {
		return c.fail(tickID, &state.Error{Kind: state.NumericFailure, Op: "controller.Tick"})
	}
	if err := c.control.Commit(c.Store, controlResultVal); err != nil {
		return c.fail(tickID, err)
	}

	c.wait(in)

	return Output{TickID: tickID, Torques: res.tau, Faulted: false}, nil
}

func (c *Controller) perceive(in Input) error {
	c.Store.SetPhase(state.Perception)

	for id, q := range in.JointPositions {
		if err := c.Store.SetJointValue(state.Position, id, q); err != nil {
			return err
		}
	}
	for id, qd := range in.JointVelocities {
		if err := c.Store.SetJointValue(state.Velocity, id, qd); err != nil {
			return err
		}
	}
	if err := c.Store.SetBaseValue(state.Position, in.BasePose); err != nil {
		return err
	}
	if err := c.Store.SetBaseValue(state.Velocity, in.BaseTwist); err != nil {
		return err
	}

	for id, qd := range in.JointVelocities {
		prev := c.qdotPrev[id]
		if prev == nil {
			prev = mat.NewVecDense(qd.Len(), nil)
		}
		var qdd mat.VecDense
		qdd.SubVec(qd, prev)
		qdd.ScaleVec(1/in.Dt, &qdd)
		if err := c.Store.SetJointValue(state.Acceleration, id, &qdd); err != nil {
			return err
		}
	}

	if err := c.Store.AddContacts(in.Contacts...); err != nil {
		return err
	}

	posByJoint := map[string]*mat.VecDense{}
	for _, j := range c.Joints {
		posByJoint[j.ID] = in.JointPositions[j.ID]
	}
	q, err := c.Store.ToGeneralized(posByJoint)
	if err != nil {
		return err
	}
	if err := c.KM.SetGeneralizedCoordinates(q); err != nil {
		return err
	}
	if err := c.KM.UpdateLinkPoses(); err != nil {
		return err
	}

	qd, err := c.Store.ToGeneralized(in.JointVelocities)
	if err != nil {
		return err
	}
	if err := c.KM.SetGeneralizedVelocity(qd); err != nil {
		return err
	}
	if err := c.KM.UpdateLinkVelocities(); err != nil {
		return err
	}

	M, err := c.KM.GeneralizedInertia()
	if err != nil {
		return err
	}
	fext, err := c.KM.GeneralizedForces()
	if err != nil {
		return err
	}

	contacts := c.Store.Contacts()
	if c.Config.ParallelStiffness {
		contacts = nonCompliant(contacts)
	}
	jac, err := contactjac.Assemble(c.KM, c.EEFs, contacts)
	if err != nil {
		return err
	}

	v := fullVelocity(q.Len(), qd, in.BaseTwist)

	c.scratch = perceptionScratch{M: M, fext: fext, v: v, jac: jac, dt: in.Dt}

	com, err := c.computeCoM()
	if err == nil {
		c.updateCoMTelemetry(com, in.Dt)
	}

	return nil
}

func (c *Controller) wait(in Input) {
	c.Store.SetPhase(state.Waiting)
	_ = c.Store.ResetContacts()
	c.Store.SetPhase(state.Perception)

	for id, qd := range in.JointVelocities {
		cp := mat.NewVecDense(qd.Len(), nil)
		cp.CopyVec(qd)
		c.qdotPrev[id] = cp
	}
	c.elapsed += in.Dt
}

func (c *Controller) fail(tickID uuid.UUID, err error) (Output, error) {
	se, ok := err.(*state.Error)
	if ok && !se.Kind.Fatal() {
		log.WithError(err).Warn("controller: non-fatal error escaped a stage, treating as fatal")
	}
	if state.Is(err, state.PhaseViolation) {
		c.metrics.PhaseViolations.Inc()
	}
	log.WithError(err).Error("controller: fatal error, latching fault")
	c.Faulted = true
	c.metrics.Faults.Inc()
	return c.haltOutput(tickID), err
}

func (c *Controller) haltOutput(tickID uuid.UUID) Output {
	tau := map[string]float64{}
	for _, j := range c.Joints {
		tau[j.ID] = 0
	}
	return Output{TickID: tickID, Torques: tau, Faulted: true}
}

// Reset clears the latched fault, so the host can resume ticking after
// operator intervention.
func (c *Controller) Reset() {
	c.Faulted = false
}

func allFinite(tau map[string]float64) bool {
	for _, v := range tau {
		if !pid.Finite(v) {
			return false
		}
	}
	return true
}

func nonCompliant(contacts []state.Contact) []state.Contact {
	out := make([]state.Contact, 0, len(contacts))
	for _, c := range contacts {
		if !c.Compliant {
			out = append(out, c)
		}
	}
	return out
}

// fullVelocity builds the NDOF generalized velocity vector from the
// joint-only vector and the 6-wide base twist, matching the
// joints-then-base layout idyn.Problem and contactjac.Jacobians use.
func fullVelocity(numJointDOFs int, qd, baseTwist *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(numJointDOFs+state.NSpatial, nil)
	for i := 0; i < numJointDOFs; i++ {
		out.SetVec(i, qd.AtVec(i))
	}
	for i := 0; i < state.NSpatial; i++ {
		out.SetVec(numJointDOFs+i, baseTwist.AtVec(i))
	}
	return out
}

func footOrigins(eefs []model.EndEffector) []math3d.Vector3 {
	out := make([]math3d.Vector3, len(eefs))
	for i, e := range eefs {
		out[i] = e.Origin
	}
	return out
}
