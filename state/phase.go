package state

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "state",
})

// Phase is one stage of the per-tick lifecycle enforced by Store. See
// spec.md §4.1 for the legal transition table.
type Phase int

const (
	Initialization Phase = iota
	Perception
	Planning
	Control
	Waiting
)

func (p Phase) String() string {
	switch p {
	case Initialization:
		return "INITIALIZATION"
	case Perception:
		return "PERCEPTION"
	case Planning:
		return "PLANNING"
	case Control:
		return "CONTROL"
	case Waiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

// class groups the Units that share an allowed-phase rule.
type class int

const (
	classMeasured class = iota
	classGoal
	classLoadGoal
	classAux
)

func (u Unit) class() class {
	switch u {
	case Position, Velocity, Acceleration, Load:
		return classMeasured
	case PositionGoal, VelocityGoal, AccelerationGoal:
		return classGoal
	case LoadGoal:
		return classLoadGoal
	default:
		return classAux
	}
}

// allowedIn reports whether a write to a unit of this class is legal in
// phase p, per spec.md §3 invariant (iv):
//
//	measured units: PERCEPTION only
//	goal units (position/velocity/acceleration): PLANNING or CONTROL
//	load_goal: CONTROL only
//	auxiliary (misc_*, initialization): any phase but WAITING
func (c class) allowedIn(p Phase) bool {
	switch c {
	case classMeasured:
		return p == Perception
	case classGoal:
		return p == Planning || p == Control
	case classLoadGoal:
		return p == Control
	default:
		return p != Waiting
	}
}

// advanceOnWrite returns the phase a write of this class should trigger
// a transition into, and whether that transition applies from the
// store's current phase. This implements the "first PLANNING-class
// write" / "first CONTROL-class write" triggers of spec.md §4.1.
func (c class) advanceOnWrite() (Phase, bool) {
	switch c {
	case classGoal:
		return Planning, true
	case classLoadGoal:
		return Control, true
	default:
		return 0, false
	}
}

// checkAndAdvance validates that a write to u is legal from the store's
// current phase, advancing PERCEPTION->PLANNING or PLANNING->CONTROL if
// this is the first write of that class this tick. Callers must hold
// s.mu.
func (s *Store) checkAndAdvance(op string, u Unit) error {
	c := u.class()

	// A PLANNING-class write from PERCEPTION, or a CONTROL-class write
	// from PLANNING, triggers the natural forward transition before the
	// legality check -- this is what makes "first PLANNING-class write"
	// a trigger rather than a precondition. The write must originate
	// from to's immediate predecessor; a write from anywhere earlier
	// (e.g. a CONTROL-class write still in PERCEPTION) is not a legal
	// trigger and falls through to the allowedIn check below, which
	// rejects it.
	if to, ok := c.advanceOnWrite(); ok && isImmediatePredecessor(s.phase, to) {
		s.setPhaseLocked(to)
	}

	if !c.allowedIn(s.phase) {
		err := newErr(op, PhaseViolation, nil)
		log.WithFields(logrus.Fields{"unit": u, "phase": s.phase}).Error(err)
		return err
	}
	return nil
}

// isImmediatePredecessor reports whether a is the phase immediately
// before b in the INITIALIZATION -> PERCEPTION -> PLANNING -> CONTROL
// -> WAITING cycle -- the only phase a write is allowed to advance
// from, per spec.md §4.1's transition table.
func isImmediatePredecessor(a, b Phase) bool {
	return b-a == 1
}

// SetPhase forcibly sets the current phase. Used by the controller to
// drive INITIALIZATION->PERCEPTION and CONTROL->WAITING->PERCEPTION,
// the two transitions that aren't triggered implicitly by a write.
func (s *Store) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPhaseLocked(p)
}

func (s *Store) setPhaseLocked(p Phase) {
	if p != s.phase {
		log.Debugf("phase=%s", p)
	}
	s.phase = p
}

// CurrentPhase returns the store's current phase. Reads are
// phase-agnostic (spec.md §4.1), so this is informational only.
func (s *Store) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}
