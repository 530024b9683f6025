// Package contactjac builds the contact Jacobian matrices N, S, T, and
// D described in spec.md §4.2, from a set of active contacts and the
// NDOF point Jacobian the kinematic model supplies at each contact
// point.
//
// Grounded on original_source/include/Pacer/robot.h's
// calc_contact_jacobians signature and spec.md §4.2.
package contactjac

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/state"
)

// NK is the number of sides of the linearized friction pyramid (spec.md
// §4.2).
const NK = 4

// Jacobians holds the assembled contact-Jacobian matrices, each NDOF
// rows tall. With no eligible contacts, each is an empty (0x0) matrix.
type Jacobians struct {
	// N has one column per contact: column i = Ji^T . ni.
	N *mat.Dense

	// S, T have one column per contact: the two tangent directions.
	S *mat.Dense
	T *mat.Dense

	// D is [S T -S -T] per contact, concatenated: NDOF x (nc*NK).
	D *mat.Dense
}

// Assemble builds N/S/T/D from the contacts currently in the store,
// using km.PointJacobian to obtain the 6xNDOF point Jacobian at each
// contact point. Contacts whose LinkID doesn't belong to an eligible
// end effector (model.EndEffector.EligibleForContact) are ignored --
// this is where the stance-vs-active open question (SPEC_FULL.md) is
// resolved: eligibility gates which contacts are allowed to contribute
// a column at all, but a column is only built from a contact actually
// delivered in contacts. A contact's Tangent, when non-zero, is the
// first tangent direction and the second is derived orthogonally;
// otherwise both are derived from the normal.
func Assemble(km model.KinematicModel, eefs []model.EndEffector, contacts []state.Contact) (Jacobians, error) {
	ndofs := km.NumDOFs()

	eligible := map[string]bool{}
	for _, e := range eefs {
		if e.EligibleForContact() {
			eligible[e.LinkID] = true
		}
	}

	var kept []state.Contact
	for _, c := range contacts {
		if eligible[c.LinkID] {
			kept = append(kept, c)
		}
	}

	nc := len(kept)
	if nc == 0 {
		return Jacobians{N: &mat.Dense{}, S: &mat.Dense{}, T: &mat.Dense{}, D: &mat.Dense{}}, nil
	}
	N := mat.NewDense(ndofs, nc, nil)
	S := mat.NewDense(ndofs, nc, nil)
	T := mat.NewDense(ndofs, nc, nil)
	D := mat.NewDense(ndofs, nc*NK, nil)

	for i, c := range kept {
		j, err := km.PointJacobian(c.LinkID, c.Point)
		if err != nil {
			return Jacobians{}, err
		}

		n := c.Normal
		s, t := tangentBasis(n)
		if c.Tangent != ([3]float64{}) {
			s = normalize(c.Tangent)
			t = normalize(cross(n, s))
		}

		nCol := mat.NewVecDense(ndofs, nil)
		sCol := mat.NewVecDense(ndofs, nil)
		tCol := mat.NewVecDense(ndofs, nil)

		// column = J^T . dir, where J is the linear (top 3) rows of the
		// 6xNDOF spatial Jacobian -- contact forces are pure forces, no
		// moments, at the contact point.
		for row := 0; row < ndofs; row++ {
			var dn, ds, dt float64
			for k := 0; k < 3; k++ {
				jv := j.At(k, row)
				dn += jv * n[k]
				ds += jv * s[k]
				dt += jv * t[k]
			}
			nCol.SetVec(row, dn)
			sCol.SetVec(row, ds)
			tCol.SetVec(row, dt)
		}

		N.SetCol(i, nCol.RawVector().Data)
		S.SetCol(i, sCol.RawVector().Data)
		T.SetCol(i, tCol.RawVector().Data)

		for row := 0; row < ndofs; row++ {
			D.Set(row, i*NK+0, sCol.AtVec(row))
			D.Set(row, i*NK+1, tCol.AtVec(row))
			D.Set(row, i*NK+2, -sCol.AtVec(row))
			D.Set(row, i*NK+3, -tCol.AtVec(row))
		}
	}

	return Jacobians{N: N, S: S, T: T, D: D}, nil
}

// tangentBasis builds two unit tangents orthogonal to n and to each
// other, per spec.md §4.2 "two tangents form an orthonormal frame with
// the normal".
func tangentBasis(n [3]float64) (s, t [3]float64) {
	// Cross against the x axis, or the y axis when n lies close to x,
	// avoiding a degenerate (near-parallel) cross product.
	ref := [3]float64{1, 0, 0}
	if math.Abs(n[0]) > 0.9 {
		ref = [3]float64{0, 1, 0}
	}

	s = normalize(cross(ref, n))
	t = normalize(cross(n, s))
	return s, t
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v [3]float64) [3]float64 {
	m := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if m == 0 {
		return v
	}
	return [3]float64{v[0] / m, v[1] / m, v[2] / m}
}
