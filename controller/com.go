package controller

import (
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/math3d"
	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/state"
)

// computeCoM returns the whole-body center of mass in the world frame,
// as the mass-weighted average of every link's own center of mass
// (Link.InertialPose, rotated and translated by its current pose).
//
// Grounded on original_source's RobotObject::center_of_mass, reduced
// to a pure weighted average: this core only carries Link.Mass and
// Link.InertialPose, not the full inertia tensors the original also
// folds in for angular-momentum bookkeeping, which stays out of scope
// per spec.md §1.
func (c *Controller) computeCoM() (model.Pose, error) {
	var weighted math3d.Vector3
	var totalMass float64

	for _, l := range c.Links {
		pose, err := c.KM.LinkPose(l.ID)
		if err != nil {
			return model.Pose{}, err
		}
		offset := math3d.Vector3{X: l.InertialPose[0], Y: l.InertialPose[1], Z: l.InertialPose[2]}
		world := rotateVector(pose.R, offset)
		world.X += pose.T[0]
		world.Y += pose.T[1]
		world.Z += pose.T[2]

		weighted = *weighted.Add(world.MultiplyByScalar(l.Mass))
		totalMass += l.Mass
	}

	if totalMass <= 0 {
		return model.Pose{}, &state.Error{Kind: state.NumericFailure, Op: "controller.computeCoM"}
	}

	com := weighted.MultiplyByScalar(1 / totalMass)
	return model.Pose{T: [3]float64{com.X, com.Y, com.Z}}, nil
}

func rotateVector(r [3][3]float64, v math3d.Vector3) math3d.Vector3 {
	return math3d.Vector3{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// updateCoMTelemetry finite-differences the CoM velocity against the
// previous tick's CoM and publishes both, plus a simplified ZMP, to
// the store's auxiliary data map for external inspection.
//
// The ZMP here is just the CoM's ground projection: a full zero-moment
// point needs the ground-reaction-force distribution IDYN's Solution
// carries (Cn, Beta) combined with each contact's point, which
// computeCoM has no access to -- this simplification is recorded in
// DESIGN.md rather than wired through, since IDYN is optional
// (Config.ControlIDYN) and the ZMP estimate should exist regardless.
func (c *Controller) updateCoMTelemetry(com model.Pose, dt float64) {
	var vel [3]float64
	if c.prevCoMOK && dt > 0 {
		for i := 0; i < 3; i++ {
			vel[i] = (com.T[i] - c.prevCoM.T[i]) / dt
		}
	}
	c.scratch.com = com
	c.scratch.comVel = vel

	prev := com
	c.prevCoM = &prev
	c.prevCoMOK = true

	c.Store.SetData("com_position", state.VectorValue(com.T[:]))
	c.Store.SetData("com_velocity", state.VectorValue(vel[:]))
	c.Store.SetData("zmp", state.VectorValue([]float64{com.T[0], com.T[1]}))
}

// applyTrunkStabilizer biases each stance foot's acceleration goal
// toward recovering the horizontal CoM position over the current
// support centroid, realizing spec.md §4.8 step 2's "add null-space
// stabilizer forces to feed-forward" as a PD correction projected
// through the stance leg's own Jacobian transpose rather than a literal
// whole-body null-space force projector -- this core doesn't carry a
// full contact-constraint null-space basis outside of idyn.Solve's
// Stage I/II decomposition, so the transpose-Jacobian approximation
// (a standard virtual-force-to-joint-torque mapping) stands in, and the
// bias only ever reaches the IDYN feed-forward term (via
// AccelerationGoal's VPlus use in controlStage.Run), never the PID
// feedback loop directly.
func (c *Controller) applyTrunkStabilizer() error {
	stance := 0
	var centroid math3d.Vector3
	for _, eef := range c.EEFs {
		if eef.Stance {
			fs, ok := c.Store.FootStateOf(eef.ID)
			if !ok {
				continue
			}
			centroid = *centroid.Add(math3d.Vector3{X: fs.Position[0], Y: fs.Position[1], Z: fs.Position[2]})
			stance++
		}
	}
	if stance == 0 {
		return nil
	}
	centroid = centroid.MultiplyByScalar(1 / float64(stance))

	errXY := math3d.Vector3{X: centroid.X - c.scratch.com.T[0], Y: centroid.Y - c.scratch.com.T[1]}
	bias := math3d.Vector3{
		X: c.Config.Trunk.Kp*errXY.X - c.Config.Trunk.Kv*c.scratch.comVel[0],
		Y: c.Config.Trunk.Kp*errXY.Y - c.Config.Trunk.Kv*c.scratch.comVel[1],
	}
	if bias.X == 0 && bias.Y == 0 {
		return nil
	}

	for _, eef := range c.EEFs {
		if !eef.Stance {
			continue
		}
		jf := c.prevJf[eef.ID]
		if jf == nil {
			continue
		}

		var jbias mat.VecDense
		jbias.MulVec(jf.T(), mat.NewVecDense(3, []float64{bias.X, bias.Y, 0}))

		for i, idx := range eef.Chain {
			cur, err := accelerationGoalByIndex(c.Store, c.Joints, idx)
			if err != nil {
				return err
			}
			if err := setAccelerationGoalByIndex(c.Store, c.Joints, idx, cur+jbias.AtVec(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// accelerationGoalByIndex and setAccelerationGoalByIndex read/write a
// single generalized-coordinate slot of AccelerationGoal, resolving the
// owning joint and its offset within Joint.Coords.
func accelerationGoalByIndex(s *state.Store, joints []model.Joint, idx int) (float64, error) {
	j, offset, err := jointForIndex(joints, idx)
	if err != nil {
		return 0, err
	}
	v, err := s.JointValue(state.AccelerationGoal, j.ID)
	if err != nil {
		return 0, err
	}
	return v.AtVec(offset), nil
}

func setAccelerationGoalByIndex(s *state.Store, joints []model.Joint, idx int, value float64) error {
	j, offset, err := jointForIndex(joints, idx)
	if err != nil {
		return err
	}
	v, err := s.JointValue(state.AccelerationGoal, j.ID)
	if err != nil {
		return err
	}
	out := mat.NewVecDense(v.Len(), nil)
	out.CopyVec(v)
	out.SetVec(offset, value)
	return s.SetJointValue(state.AccelerationGoal, j.ID, out)
}

func jointForIndex(joints []model.Joint, idx int) (model.Joint, int, error) {
	for _, j := range joints {
		for offset, c := range j.Coords {
			if c == idx {
				return j, offset, nil
			}
		}
	}
	return model.Joint{}, 0, &state.Error{Kind: state.DOFMismatch, Op: "controller.jointForIndex"}
}
