package model

import "gonum.org/v1/gonum/mat"

// Pose is a rigid transform: rotation R (3x3, row-major) and
// translation T, as returned by the dynamics engine's get_link_pose.
type Pose struct {
	R [3][3]float64
	T [3]float64
}

// KinematicModel is the interface the core consumes from the external
// rigid-body dynamics engine (spec.md §1 "Out of scope", §6 "Dynamics-
// engine interface (consumed)"). This package never implements it --
// only a host binding the core to a real physics engine does.
type KinematicModel interface {
	// SetGeneralizedCoordinates pushes q (length NUM_JOINT_DOFS, or
	// NUM_JOINT_DOFS+7 including the base pose) into the engine.
	SetGeneralizedCoordinates(q *mat.VecDense) error

	// SetGeneralizedVelocity pushes v (length NUM_JOINT_DOFS, or
	// NUM_JOINT_DOFS+6 including the base twist) into the engine.
	SetGeneralizedVelocity(v *mat.VecDense) error

	// UpdateLinkPoses recomputes link world poses from the coordinates
	// last set. Must be called before any pose/Jacobian query.
	UpdateLinkPoses() error

	// UpdateLinkVelocities recomputes link world velocities from the
	// velocity last set.
	UpdateLinkVelocities() error

	// GeneralizedInertia returns M, the NDOFxNDOF symmetric positive
	// definite generalized inertia matrix.
	GeneralizedInertia() (*mat.Dense, error)

	// GeneralizedForces returns fext, the NDOF vector of gravitational,
	// Coriolis, and other non-contact, non-actuator generalized forces.
	GeneralizedForces() (*mat.VecDense, error)

	// LinkPose returns the world pose of the named link.
	LinkPose(linkID string) (Pose, error)

	// PointJacobian returns the 6xNDOF Jacobian relating generalized
	// velocity to the spatial velocity of the given world-frame point,
	// rigidly attached to linkID.
	PointJacobian(linkID string, pointInWorld [3]float64) (*mat.Dense, error)

	// NumJointDOFs returns NUM_JOINT_DOFS, the number of actuated
	// generalized coordinates (excluding the 6 unactuated base DOFs).
	NumJointDOFs() int

	// NumDOFs returns NDOFS = NUM_JOINT_DOFS + 6, the total generalized
	// coordinate count including the floating base.
	NumDOFs() int
}
