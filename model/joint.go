// Package model holds the static robot description -- joints, links,
// end effectors -- and the KinematicModel interface the core consumes
// from the external rigid-body dynamics engine (spec.md §1, §6).
//
// Grounded on original_source/include/Pacer/robot.h's end_effector_t
// and the dynamics-engine methods Robot::update calls
// (get_generalized_inertia, get_generalized_forces, get_point_jacobian).
package model

// Joint is one actuated degree-of-freedom group in the robot, per
// spec.md §3.
type Joint struct {
	ID string

	// Coords are the generalized-coordinate indices this joint
	// occupies, in order. Most legs in this domain have 3 single-DOF
	// joints (coxa/hip, femur/knee, ankle), so Coords usually has one
	// entry per Joint, but the type supports multi-DOF joints.
	Coords []int

	TorqueLimit float64

	Gains PIDGains

	// Home is the nominal resting angle for this joint's first DOF.
	Home float64
}

// PIDGains bundles the per-joint gains of spec.md §4.5. The running ki
// accumulator lives in pid.Controller, keyed by joint id, not here.
type PIDGains struct {
	Kp, Kv, Ki float64

	// AntiWindup, when true, resets the ki accumulator whenever sign(e)
	// flips (spec.md §4.5).
	AntiWindup bool
}

// DOFs returns the number of generalized coordinates this joint
// occupies.
func (j Joint) DOFs() int {
	return len(j.Coords)
}
