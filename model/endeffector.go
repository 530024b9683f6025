package model

import "github.com/wojiaojiao/Pacer/math3d"

// EndEffector is a foot: the link it's attached to, the kinematic chain
// of joint indices from root to foot, and the active/stance flags that
// gate whether it participates in contact-based stages this tick.
// Grounded on Pacer's end_effector_t (robot.h).
type EndEffector struct {
	ID     string
	LinkID string

	// Chain holds the generalized-coordinate indices (root to foot)
	// actuating this leg, mirroring end_effector_t::chain.
	Chain []int

	// Origin is this foot's nominal position in the body-horizontal
	// frame, relative to the body -- spec.md §4.3's "origin".
	Origin math3d.Vector3

	// Active is true when a sensor-reported contact currently exists at
	// this foot.
	Active bool

	// Stance is true when the gait schedule commands this foot to be in
	// stance right now, independent of whether a contact has actually
	// been sensed.
	Stance bool
}

// EligibleForContact resolves the open question in spec.md §9 on
// whether the gait planner's Stance flag should override a
// sensor-reported Active disagreement: either flag alone makes this
// foot a candidate for a contact Jacobian column (see
// contactjac.Assemble), so a stance foot with no sensed contact is not
// rejected, nor is a sensed foot the gait has in swing; a column is only
// actually built from a contact that was delivered to the state store
// this tick -- a stance foot that never reports a contact simply
// contributes nothing.
func (e EndEffector) EligibleForContact() bool {
	return e.Stance || e.Active
}
