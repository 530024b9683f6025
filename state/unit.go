package state

// Unit identifies which semantic quantity a stored vector represents,
// per spec.md §3's closed set {measured, commanded, auxiliary}.
type Unit int

const (
	// Measured units, written only during PERCEPTION.
	Position Unit = iota
	Velocity
	Acceleration
	Load

	// Commanded (goal) units, written during PLANNING or CONTROL.
	PositionGoal
	VelocityGoal
	AccelerationGoal

	// LoadGoal (commanded torque) is written only during CONTROL.
	LoadGoal

	// Auxiliary units: a free-form channel for plugins to stash
	// intermediate values in the generalized-vector storage rather than
	// the keyed data map, when they need phase gating too.
	MiscSensor
	MiscPlanner
	MiscController
	InitializationUnit
)

func (u Unit) String() string {
	switch u {
	case Position:
		return "position"
	case Velocity:
		return "velocity"
	case Acceleration:
		return "acceleration"
	case Load:
		return "load"
	case PositionGoal:
		return "position_goal"
	case VelocityGoal:
		return "velocity_goal"
	case AccelerationGoal:
		return "acceleration_goal"
	case LoadGoal:
		return "load_goal"
	case MiscSensor:
		return "misc_sensor"
	case MiscPlanner:
		return "misc_planner"
	case MiscController:
		return "misc_controller"
	case InitializationUnit:
		return "initialization"
	default:
		return "unknown"
	}
}

// isPose reports whether u is a unit whose base-body representation is a
// 7-component quaternion pose (NEULER) rather than a 6-component
// spatial vector (NSPATIAL). See spec.md §3 invariant (ii).
func (u Unit) isPose() bool {
	return u == Position || u == PositionGoal
}
