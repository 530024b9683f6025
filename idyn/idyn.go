// Package idyn solves the constrained inverse-dynamics QP of
// spec.md §4.6: given the desired post-step velocity and the assembled
// contact Jacobians, recover per-contact normal/friction impulses and
// the joint torques consistent with them.
package idyn

import (
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/state"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "idyn"})

// NK mirrors contactjac.NK; duplicated here to avoid an import of
// contactjac purely for a constant.
const NK = 4

// Problem bundles one tick's inverse-dynamics inputs. N and D are the
// contactjac outputs; joint coordinates occupy rows/columns
// [0, NumJointDOFs) and the unactuated base occupies the rest.
type Problem struct {
	M     *mat.Dense   // NDOF x NDOF generalized inertia
	Fext  *mat.VecDense // NDOF
	N     *mat.Dense   // NDOF x nc
	D     *mat.Dense   // NDOF x nc*NK
	V     *mat.VecDense // current generalized velocity, NDOF
	VPlus *mat.VecDense // desired post-step generalized velocity, NDOF

	Dt           float64
	NumJointDOFs int

	// Deadline, if non-zero, causes Solve to return DeadlineExceeded
	// rather than run Stage II once exceeded (spec.md §5).
	Deadline time.Time
}

// Solution is the recovered torque command plus the contact impulses
// that justify it, for diagnostics.
type Solution struct {
	Tau      *mat.VecDense
	Cn       []float64
	Beta     []float64
	Residual float64

	// Regularized is true if either Stage I or Stage II needed a
	// nonzero diagonal perturbation of the LCP before Lemke's method
	// converged, per spec.md §4.6's regularization fallback.
	Regularized bool
}

// Solve runs Stage I (least-squares-feasible contact impulses) and
// Stage II (null-space secondary minimization) of spec.md §4.6, then
// recovers joint torques from the actuated rows of the Newton-Euler
// balance.
func Solve(p Problem) (Solution, error) {
	ndof, _ := p.M.Dims()
	_, nc := p.N.Dims()
	baseRows := make([]int, 0, ndof-p.NumJointDOFs)
	for i := p.NumJointDOFs; i < ndof; i++ {
		baseRows = append(baseRows, i)
	}
	jointRows := make([]int, p.NumJointDOFs)
	for i := range jointRows {
		jointRows[i] = i
	}

	if !isSPD(p.M) {
		return Solution{}, &state.Error{Kind: state.SingularInertia, Op: "idyn.Solve"}
	}

	var dv mat.VecDense
	dv.SubVec(p.VPlus, p.V)

	var impulse mat.VecDense
	impulse.MulVec(p.M, &dv)

	jstar := mat.NewVecDense(ndof, nil)
	for i := 0; i < ndof; i++ {
		jstar.SetVec(i, impulse.AtVec(i)-p.Fext.AtVec(i)*p.Dt)
	}

	if nc == 0 {
		// No contacts: the joint rows' required impulse comes from
		// torque alone, and nothing offsets the base rows.
		tau := mat.NewVecDense(p.NumJointDOFs, nil)
		for i := 0; i < p.NumJointDOFs; i++ {
			tau.SetVec(i, jstar.AtVec(i)/p.Dt)
		}
		return Solution{Tau: tau, Cn: []float64{}, Beta: []float64{}, Residual: mat.Norm(selectVecRows(jstar, baseRows), 2)}, nil
	}

	jstarBase := selectVecRows(jstar, baseRows)
	Nbase := selectRows(p.N, baseRows)
	Dbase := selectRows(p.D, baseRows)
	R := hstack(Nbase, Dbase)

	n := nc + nc*NK
	var Q mat.Dense
	Q.Mul(R.T(), R)

	var cVec mat.VecDense
	cVec.MulVec(R.T(), jstarBase)
	cVec.ScaleVec(-1, &cVec)

	A := identity(n)
	b := mat.NewVecDense(n, nil)

	z, regularized, err := SolveQP(&Q, &cVec, A, b)
	if err != nil {
		return Solution{}, err
	}

	residual := residualNorm(R, z, jstarBase)

	if !p.Deadline.IsZero() && time.Now().After(p.Deadline) {
		log.Warn("idyn: wall budget exhausted before stage II, abandoning solve")
		return Solution{}, &state.Error{Kind: state.DeadlineExceeded, Op: "idyn.Solve"}
	}

	P := NullSpace(&Q)
	if _, m := P.Dims(); m > 0 {
		z2, stage2Regularized, ok := stageTwo(&Q, &cVec, P, z)
		if ok {
			candidateResidual := residualNorm(R, z2, jstarBase)
			if candidateResidual <= residual+1e-9 {
				z = z2
				residual = candidateResidual
				regularized = regularized || stage2Regularized
			}
		}
	}

	cn := make([]float64, nc)
	beta := make([]float64, nc*NK)
	for i := 0; i < nc; i++ {
		cn[i] = z.AtVec(i)
	}
	for i := 0; i < nc*NK; i++ {
		beta[i] = z.AtVec(nc + i)
	}

	Njoint := selectRows(p.N, jointRows)
	Djoint := selectRows(p.D, jointRows)

	ncVec := mat.NewVecDense(nc, cn)
	betaVec := mat.NewVecDense(nc*NK, beta)

	var nContrib, dContrib mat.VecDense
	nContrib.MulVec(Njoint, ncVec)
	dContrib.MulVec(Djoint, betaVec)

	tau := mat.NewVecDense(p.NumJointDOFs, nil)
	for i := 0; i < p.NumJointDOFs; i++ {
		v := impulse.AtVec(i) - p.Fext.AtVec(i)*p.Dt - nContrib.AtVec(i)*p.Dt - dContrib.AtVec(i)*p.Dt
		tau.SetVec(i, v/p.Dt)
	}

	return Solution{Tau: tau, Cn: cn, Beta: beta, Residual: residual, Regularized: regularized}, nil
}

// stageTwo runs the null-space refinement: minimize ||z+Pw||^2 subject
// to z+Pw >= 0 and the Stage-I objective gradient direction not
// increasing the residual (original_source/estimatefrict.cpp's Stage
// II, generalized here to the full z rather than just its cn block).
func stageTwo(Q *mat.Dense, c *mat.VecDense, P *mat.Dense, z *mat.VecDense) (*mat.VecDense, bool, bool) {
	n, m := P.Dims()

	var Q2 mat.Dense
	Q2.Mul(P.T(), P)

	var c2 mat.VecDense
	c2.MulVec(P.T(), z)

	var cP mat.VecDense
	cP.MulVec(P.T(), c)

	A2 := mat.NewDense(1+n, m, nil)
	for j := 0; j < m; j++ {
		A2.Set(0, j, cP.AtVec(j))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			A2.Set(1+i, j, P.At(i, j))
		}
	}

	b2 := mat.NewVecDense(1+n, nil)
	for i := 0; i < n; i++ {
		b2.SetVec(1+i, -z.AtVec(i))
	}

	w, regularized, err := SolveQP(&Q2, &c2, A2, b2)
	if err != nil {
		return nil, false, false
	}

	var z2 mat.VecDense
	z2.MulVec(P, w)

	out := mat.NewVecDense(n, nil)
	out.AddVec(z, &z2)
	return out, regularized, true
}

func residualNorm(R *mat.Dense, z, jstar *mat.VecDense) float64 {
	var rz mat.VecDense
	rz.MulVec(R, z)
	rz.SubVec(&rz, jstar)
	return mat.Norm(&rz, 2)
}

func isSPD(m *mat.Dense) bool {
	var chol mat.Cholesky
	sym := mat.NewSymDense(m.RawMatrix().Rows, nil)
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		for j := i; j < rows; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	return chol.Factorize(sym)
}

func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}

func selectVecRows(v *mat.VecDense, rows []int) *mat.VecDense {
	out := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		out.SetVec(i, v.AtVec(r))
	}
	return out
}

func hstack(a, b *mat.Dense) *mat.Dense {
	rows, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(rows, ca+cb, nil)
	out.Slice(0, rows, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, rows, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

func identity(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}
