// Package state implements the robot state store and phase controller
// described in spec.md §4.1: a thread-safe, phase-gated mapping from
// joint identifier and semantic unit to value vectors, plus base-body
// spatial state, per-foot Cartesian state, and a generic keyed data map.
//
// Grounded on Pacer::Robot (original_source/include/Pacer/robot.h):
// the same unit_e enum, the same _lock_state-style phase gate (here
// generalized into the full five-phase cycle), and the same
// convert_to_generalized/convert_from_generalized pair.
package state

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/google/uuid"
)

const (
	// NSpatial is the width of a base-body spatial vector (velocity,
	// acceleration, load): 3 linear + 3 angular.
	NSpatial = 6

	// NEuler is the width of a base-body pose vector: 3 linear + 4
	// quaternion components.
	NEuler = 7
)

// Store is the process-wide, mutex-protected robot state. All downstream
// pipeline stages read and write exclusively through a Store.
type Store struct {
	mu sync.Mutex

	phase Phase

	// dofs maps joint id to its DOF count, established once during
	// INITIALIZATION from the kinematic model, and used to validate
	// every subsequent per-joint write (spec.md §3 invariant (i)).
	dofs map[string]int

	// order is the stable ordering of joint ids into the generalized
	// coordinate vector, fixed at INITIALIZATION.
	order []string

	// coord maps joint id to the first generalized-coordinate index it
	// occupies, mirroring Pacer's _id_dof_coord_map.
	coord map[string]int

	numJointDOFs int

	joints map[Unit]map[string]*mat.VecDense
	base   map[Unit]*mat.VecDense
	feet   map[string]FootState

	contacts   []Contact
	contactsID uuid.UUID

	data map[string]Value
}

// FootState is the per-foot Cartesian state (position, velocity,
// acceleration) the gait planner and RMRC exchange, stored separately
// from the generalized joint/base vectors because it lives in the
// body-horizontal frame rather than generalized coordinates.
type FootState struct {
	Position [3]float64
	Velocity [3]float64
	Acceleration [3]float64
	Stance       bool
	Active       bool
}

// New constructs an empty Store in the INITIALIZATION phase. Call
// AddJoint for every joint, then Compile once, before the first tick.
func New() *Store {
	return &Store{
		phase:  Initialization,
		dofs:   map[string]int{},
		coord:  map[string]int{},
		joints: map[Unit]map[string]*mat.VecDense{},
		base:   map[Unit]*mat.VecDense{},
		feet:   map[string]FootState{},
		data:   map[string]Value{},
	}
}

// AddJoint registers a joint with the given DOF count. Must be called
// during INITIALIZATION, before Compile.
func (s *Store) AddJoint(id string, dofs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Initialization {
		panic("state: AddJoint called outside INITIALIZATION")
	}
	if _, exists := s.dofs[id]; exists {
		return
	}
	s.dofs[id] = dofs
	s.order = append(s.order, id)
}

// Compile assigns generalized-coordinate indices to every registered
// joint (in registration order) and allocates zeroed storage for every
// unit. Ends INITIALIZATION and advances the store to PERCEPTION, per
// spec.md §4.1.
func (s *Store) Compile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := 0
	for _, id := range s.order {
		s.coord[id] = idx
		idx += s.dofs[id]
	}
	s.numJointDOFs = idx

	units := []Unit{
		Position, Velocity, Acceleration, Load,
		PositionGoal, VelocityGoal, AccelerationGoal, LoadGoal,
		MiscSensor, MiscPlanner, MiscController, InitializationUnit,
	}
	for _, u := range units {
		s.joints[u] = map[string]*mat.VecDense{}
		for _, id := range s.order {
			s.joints[u][id] = mat.NewVecDense(s.dofs[id], nil)
		}
		if u.isPose() {
			s.base[u] = mat.NewVecDense(NEuler, nil)
		} else {
			s.base[u] = mat.NewVecDense(NSpatial, nil)
		}
	}

	log.Infof("compiled %d joints, %d generalized DOFs", len(s.order), s.numJointDOFs)
	s.setPhaseLocked(Perception)
}

// NumJointDOFs returns the total number of joint-only generalized
// coordinates (NUM_JOINT_DOFS in spec.md's terminology).
func (s *Store) NumJointDOFs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numJointDOFs
}

// JointIDs returns the joints in their fixed generalized-coordinate
// order.
func (s *Store) JointIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SetJointValue writes dof-value vectors for joint id under unit u,
// enforcing the phase gate and the DOF-count invariant.
func (s *Store) SetJointValue(u Unit, id string, v *mat.VecDense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAndAdvance("SetJointValue", u); err != nil {
		return err
	}

	want, ok := s.dofs[id]
	if !ok {
		return newErr("SetJointValue", KeyNotFound, fmt.Errorf("joint %q not registered", id))
	}
	if v.Len() != want {
		return newErr("SetJointValue", DOFMismatch, fmt.Errorf("joint %q: have %d dofs, got vector of length %d", id, want, v.Len()))
	}

	dst := s.joints[u][id]
	dst.CopyVec(v)
	return nil
}

// JointValue returns a copy of the stored vector for joint id under
// unit u. Reads are phase-agnostic.
func (s *Store) JointValue(u Unit, id string) (*mat.VecDense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.joints[u][id]
	if !ok {
		return nil, newErr("JointValue", KeyNotFound, fmt.Errorf("joint %q not registered", id))
	}
	out := mat.NewVecDense(src.Len(), nil)
	out.CopyVec(src)
	return out, nil
}

// SetBaseValue writes the base-body vector for unit u.
func (s *Store) SetBaseValue(u Unit, v *mat.VecDense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAndAdvance("SetBaseValue", u); err != nil {
		return err
	}

	want := NSpatial
	if u.isPose() {
		want = NEuler
	}
	if v.Len() != want {
		return newErr("SetBaseValue", DOFMismatch, fmt.Errorf("base %s: want %d rows, got %d", u, want, v.Len()))
	}

	dst, ok := s.base[u]
	if !ok {
		dst = mat.NewVecDense(want, nil)
		s.base[u] = dst
	}
	dst.CopyVec(v)
	return nil
}

// BaseValue returns a copy of the base-body vector for unit u.
func (s *Store) BaseValue(u Unit) (*mat.VecDense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.base[u]
	if !ok {
		return nil, newErr("BaseValue", KeyNotFound, fmt.Errorf("base unit %s not present", u))
	}
	out := mat.NewVecDense(src.Len(), nil)
	out.CopyVec(src)
	return out, nil
}

// SetFootState writes the Cartesian state for foot id. Foot state is
// planner/IK scratch, not subject to the generalized-coordinate phase
// gate, but is still only meaningfully written during PLANNING.
func (s *Store) SetFootState(id string, fs FootState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feet[id] = fs
}

// FootStateOf returns the Cartesian state for foot id.
func (s *Store) FootStateOf(id string) (FootState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.feet[id]
	return fs, ok
}

// ToGeneralized packs a per-joint map into a single NUM_JOINT_DOFS
// vector, per Pacer's convert_to_generalized.
func (s *Store) ToGeneralized(values map[string]*mat.VecDense) (*mat.VecDense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := mat.NewVecDense(s.numJointDOFs, nil)
	for id, v := range values {
		dof, ok := s.coord[id]
		if !ok {
			return nil, newErr("ToGeneralized", KeyNotFound, fmt.Errorf("joint %q not registered", id))
		}
		want := s.dofs[id]
		if v.Len() != want {
			return nil, newErr("ToGeneralized", DOFMismatch, fmt.Errorf("joint %q: want %d, got %d", id, want, v.Len()))
		}
		for j := 0; j < want; j++ {
			out.SetVec(dof+j, v.AtVec(j))
		}
	}
	return out, nil
}

// FromGeneralized unpacks a NUM_JOINT_DOFS vector into a per-joint map,
// per Pacer's convert_from_generalized.
func (s *Store) FromGeneralized(v *mat.VecDense) (map[string]*mat.VecDense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Len() != s.numJointDOFs {
		return nil, newErr("FromGeneralized", DOFMismatch, fmt.Errorf("want %d, got %d", s.numJointDOFs, v.Len()))
	}
	out := map[string]*mat.VecDense{}
	for _, id := range s.order {
		dof := s.coord[id]
		n := s.dofs[id]
		sub := mat.NewVecDense(n, nil)
		for j := 0; j < n; j++ {
			sub.SetVec(j, v.AtVec(dof+j))
		}
		out[id] = sub
	}
	return out, nil
}
