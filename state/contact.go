package state

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Contact is a single foot-ground (or foot-object) contact delivered to
// the core at the start of a tick, per spec.md §3. Contacts live for
// exactly one tick (invariant (iii)).
type Contact struct {
	// LinkID identifies the link the contact lies on (usually a foot's
	// link).
	LinkID string

	Point  [3]float64
	Normal [3]float64

	// Tangent is one unit tangent; the second tangent is derived
	// orthogonally by contactjac.Assemble.
	Tangent [3]float64

	Impulse [3]float64

	MuCoulomb  float64
	MuViscous  float64
	Restitution float64

	// Compliant marks a contact handled by parallel-stiffness eef
	// compliance rather than a rigid unilateral constraint.
	Compliant bool
}

// ResetContacts clears the current contact set. Legal only during
// WAITING, per spec.md §3 invariant (iii) and §4.8 step 4.
func (s *Store) ResetContacts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Waiting {
		return newErr("ResetContacts", PhaseViolation, nil)
	}
	s.contacts = nil
	s.contactsID = uuid.Nil
	return nil
}

// AddContacts appends contacts to the current set, and is legal during
// PERCEPTION (when the sensor feed delivers them) or INITIALIZATION.
func (s *Store) AddContacts(cs ...Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Perception && s.phase != Initialization {
		return newErr("AddContacts", PhaseViolation, nil)
	}
	if s.contactsID == uuid.Nil {
		s.contactsID = uuid.New()
	}
	s.contacts = append(s.contacts, cs...)
	return nil
}

// Contacts returns a copy of the currently delivered contact set.
func (s *Store) Contacts() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// ContactSetID returns the identifier stamped on the current contact
// set, for log correlation across the tick (spec.md §6.2 of
// SPEC_FULL.md). It is uuid.Nil after ResetContacts until the next
// AddContacts call, even one that adds no contacts.
func (s *Store) ContactSetID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contactsID
}

// PointVec returns c.Point as a 3-vector.
func (c Contact) PointVec() *mat.VecDense {
	return mat.NewVecDense(3, c.Point[:])
}

// NormalVec returns c.Normal as a 3-vector.
func (c Contact) NormalVec() *mat.VecDense {
	return mat.NewVecDense(3, c.Normal[:])
}

// TangentVec returns c.Tangent as a 3-vector.
func (c Contact) TangentVec() *mat.VecDense {
	return mat.NewVecDense(3, c.Tangent[:])
}
