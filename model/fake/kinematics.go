// Package fake provides in-memory stand-ins for the external
// dynamics-engine interface, for use in tests -- in the spirit of the
// teacher's own fake/serial and fake/voltage packages.
package fake

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/model"
)

// KinematicModel is a configurable fake of model.KinematicModel. It
// models a robot as a set of independent straight-line legs hanging
// from a fixed base: each link's world position is LinkOffsets[id] plus
// the sum of per-joint-DOF unit translations along LinkAxes[id][i],
// scaled by the current joint angle -- enough to exercise RMRC, contact
// Jacobian assembly, and IDYN without a real physics engine.
type KinematicModel struct {
	NumJoints int
	NumBase   int

	// LinkOffsets is each link's position when q is all zero.
	LinkOffsets map[string][3]float64

	// LinkAxes is, for each link, one 3-vector per generalized
	// coordinate describing how that link's position moves per unit of
	// that coordinate (a crude linearized Jacobian column).
	LinkAxes map[string][][3]float64

	M    *mat.Dense
	Fext *mat.VecDense

	q *mat.VecDense
	v *mat.VecDense
}

// NewKinematicModel returns a fake with an identity-ish inertia matrix
// of the given size and zero external forces.
func NewKinematicModel(numJoints int) *KinematicModel {
	ndofs := numJoints + 6
	m := mat.NewDense(ndofs, ndofs, nil)
	for i := 0; i < ndofs; i++ {
		m.Set(i, i, 1.0)
	}
	return &KinematicModel{
		NumJoints:   numJoints,
		NumBase:     6,
		LinkOffsets: map[string][3]float64{},
		LinkAxes:    map[string][][3]float64{},
		M:           m,
		Fext:        mat.NewVecDense(ndofs, nil),
		q:           mat.NewVecDense(numJoints+7, nil),
		v:           mat.NewVecDense(ndofs, nil),
	}
}

func (k *KinematicModel) SetGeneralizedCoordinates(q *mat.VecDense) error {
	k.q = q
	return nil
}

func (k *KinematicModel) SetGeneralizedVelocity(v *mat.VecDense) error {
	k.v = v
	return nil
}

func (k *KinematicModel) UpdateLinkPoses() error    { return nil }
func (k *KinematicModel) UpdateLinkVelocities() error { return nil }

func (k *KinematicModel) GeneralizedInertia() (*mat.Dense, error) {
	return k.M, nil
}

func (k *KinematicModel) GeneralizedForces() (*mat.VecDense, error) {
	return k.Fext, nil
}

func (k *KinematicModel) LinkPose(linkID string) (model.Pose, error) {
	off, ok := k.LinkOffsets[linkID]
	if !ok {
		return model.Pose{}, fmt.Errorf("fake: unknown link %q", linkID)
	}
	axes := k.LinkAxes[linkID]
	pos := off
	if k.q != nil {
		for i, ax := range axes {
			if i >= k.q.Len() {
				break
			}
			qi := k.q.AtVec(i)
			pos[0] += ax[0] * qi
			pos[1] += ax[1] * qi
			pos[2] += ax[2] * qi
		}
	}
	p := model.Pose{T: pos}
	p.R[0][0], p.R[1][1], p.R[2][2] = 1, 1, 1
	return p, nil
}

func (k *KinematicModel) PointJacobian(linkID string, _ [3]float64) (*mat.Dense, error) {
	ndofs := k.NumJoints + 6
	j := mat.NewDense(6, ndofs, nil)
	axes := k.LinkAxes[linkID]
	for i, ax := range axes {
		if i >= ndofs {
			break
		}
		j.Set(0, i, ax[0])
		j.Set(1, i, ax[1])
		j.Set(2, i, ax[2])
	}
	return j, nil
}

func (k *KinematicModel) NumJointDOFs() int { return k.NumJoints }
func (k *KinematicModel) NumDOFs() int      { return k.NumJoints + 6 }
