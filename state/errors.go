package state

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the core can raise. See
// spec.md §7 for the trigger and recovery policy of each.
type Kind int

const (
	// PhaseViolation is raised when a write targets a unit outside the
	// phase(s) that are allowed to write it.
	PhaseViolation Kind = iota

	// DOFMismatch is raised when a vector's length doesn't match the
	// joint's DOF count, or a generalized vector's length doesn't match
	// NUM_JOINT_DOFS (optionally +6/+7 for the base).
	DOFMismatch

	// KeyNotFound is raised by the generic data map on a miss.
	KeyNotFound

	// TypeMismatch is raised by the generic data map when the stored
	// value's tag doesn't match the requested type.
	TypeMismatch

	// IKDivergence is raised when RMRC exhausts its iteration cap.
	IKDivergence

	// LCPUnsolvable is raised when Lemke's algorithm fails even at
	// maximum regularization.
	LCPUnsolvable

	// DeadlineExceeded is raised when an IDYN solve exceeds its wall
	// budget.
	DeadlineExceeded

	// NumericFailure is raised when a commanded torque is NaN or Inf.
	NumericFailure

	// SingularInertia is raised when the generalized inertia matrix
	// fails to factor (not SPD).
	SingularInertia
)

func (k Kind) String() string {
	switch k {
	case PhaseViolation:
		return "PhaseViolation"
	case DOFMismatch:
		return "DOFMismatch"
	case KeyNotFound:
		return "KeyNotFound"
	case TypeMismatch:
		return "TypeMismatch"
	case IKDivergence:
		return "IKDivergence"
	case LCPUnsolvable:
		return "LCPUnsolvable"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case NumericFailure:
		return "NumericFailure"
	case SingularInertia:
		return "SingularInertia"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind should halt the controller
// (per spec.md §7's policy column) rather than recover locally.
func (k Kind) Fatal() bool {
	switch k {
	case PhaseViolation, DOFMismatch, KeyNotFound, TypeMismatch, NumericFailure, SingularInertia:
		return true
	default:
		return false
	}
}

// Error wraps a Kind with the operation that triggered it and, where
// applicable, an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func newErr(op string, k Kind, cause error) *Error {
	return &Error{Kind: k, Op: op, Err: cause}
}
