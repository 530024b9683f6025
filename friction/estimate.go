// Package friction recovers a per-contact Coulomb friction coefficient
// from one tick's observed velocity change, by the same Stage I/II
// QP-via-LCP reduction idyn uses, restricted to the two signed
// tangential directions of each contact's pyramid rather than its full
// four-direction nonnegative basis.
//
// Grounded on original_source/estimatefrict.cpp::friction_estimation's
// ST-basis branch (the "#else // use ST" half of that function, as
// opposed to the commented-out USE_D half).
package friction

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/wojiaojiao/Pacer/idyn"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "friction"})

// nk mirrors contactjac.NK / idyn.NK.
const nk = 4

// Problem bundles one tick's friction-estimation inputs: the velocity
// change observed across the event and the contact Jacobians active
// during it.
type Problem struct {
	M     *mat.Dense   // NDOF x NDOF generalized inertia
	FPrev *mat.VecDense // external force applied over the preceding tick
	N     *mat.Dense   // NDOF x nc
	D     *mat.Dense   // NDOF x nc*nk, contactjac's [S T -S -T] layout

	VPrev *mat.VecDense // generalized velocity before the event
	V     *mat.VecDense // generalized velocity after the event
	Dt    float64
}

// Result holds the recovered per-contact normal impulse, the two
// signed tangential impulse components, and the estimated Coulomb
// coefficient (NaN for any contact whose recovered normal impulse
// isn't positive -- there's no load to divide by).
type Result struct {
	Cn       []float64
	S        []float64
	T        []float64
	Mu       []float64
	Residual float64
}

// Estimate runs the Stage I/II QP and recovers Mu. A contact whose
// recovered Cn is non-positive gets Mu = NaN, matching
// original_source/estimatefrict.cpp's sqrt(-1) sentinel.
func Estimate(p Problem) (Result, error) {
	ndof, _ := p.M.Dims()
	_, nc := p.N.Dims()

	var dv mat.VecDense
	dv.SubVec(p.V, p.VPrev)

	var jstar mat.VecDense
	jstar.MulVec(p.M, &dv)
	for i := 0; i < ndof; i++ {
		jstar.SetVec(i, jstar.AtVec(i)-p.FPrev.AtVec(i)*p.Dt)
	}

	if nc == 0 {
		return Result{Cn: []float64{}, S: []float64{}, T: []float64{}, Mu: []float64{}, Residual: mat.Norm(&jstar, 2)}, nil
	}

	st := buildST(p.D, nc)
	n := nc + 2*nc

	R := hstack(p.N, st)

	var Q mat.Dense
	Q.Mul(R.T(), R)

	var c mat.VecDense
	c.MulVec(R.T(), &jstar)
	c.ScaleVec(-1, &c)

	A := mat.NewDense(nc, n, nil)
	for i := 0; i < nc; i++ {
		A.Set(i, i, 1)
	}
	b := mat.NewVecDense(nc, nil)

	z, _, err := idyn.SolveQP(&Q, &c, A, b)
	if err != nil {
		return Result{}, err
	}

	residual := residualNorm(R, z, &jstar)

	P := idyn.NullSpace(&Q)
	if _, m := P.Dims(); m > 0 {
		z2, ok := stageTwo(&Q, &c, P, z, nc)
		if ok {
			candidate := residualNorm(R, z2, &jstar)
			if candidate <= residual+1e-9 {
				z = z2
				residual = candidate
			}
		}
	}

	cn := make([]float64, nc)
	s := make([]float64, nc)
	tt := make([]float64, nc)
	mu := make([]float64, nc)
	for i := 0; i < nc; i++ {
		cn[i] = z.AtVec(i)
		s[i] = z.AtVec(nc + i)
		tt[i] = z.AtVec(2*nc + i)
		if cn[i] > 0 {
			mu[i] = math.Sqrt(s[i]*s[i]+tt[i]*tt[i]) / cn[i]
		} else {
			mu[i] = math.NaN()
			log.WithField("contact", i).Debug("friction: non-positive cn, coefficient undefined")
		}
	}

	return Result{Cn: cn, S: s, T: tt, Mu: mu, Residual: residual}, nil
}

// buildST extracts the two signed tangent directions ([S T]) from
// contactjac's four-direction pyramid layout ([S T -S -T] per
// contact), dropping the redundant negated pair.
func buildST(D *mat.Dense, nc int) *mat.Dense {
	rows, _ := D.Dims()
	st := mat.NewDense(rows, 2*nc, nil)
	for i := 0; i < nc; i++ {
		for j := 0; j < rows; j++ {
			st.Set(j, i, D.At(j, i*nk))
			st.Set(j, nc+i, D.At(j, i*nk+1))
		}
	}
	return st
}

// stageTwo is idyn's null-space refinement narrowed to the feasibility
// row covering only the nc cn columns of P, since the ST components
// here are unconstrained (Stage I's A has no rows for them).
func stageTwo(Q *mat.Dense, c *mat.VecDense, P *mat.Dense, z *mat.VecDense, nc int) (*mat.VecDense, bool) {
	n, m := P.Dims()

	var Q2 mat.Dense
	Q2.Mul(P.T(), P)

	var c2 mat.VecDense
	c2.MulVec(P.T(), z)

	var cP mat.VecDense
	cP.MulVec(P.T(), c)

	A2 := mat.NewDense(1+nc, m, nil)
	for j := 0; j < m; j++ {
		A2.Set(0, j, cP.AtVec(j))
	}
	for i := 0; i < nc; i++ {
		for j := 0; j < m; j++ {
			A2.Set(1+i, j, P.At(i, j))
		}
	}

	cN := make([]float64, nc)
	for i := 0; i < nc; i++ {
		cN[i] = z.AtVec(i)
	}
	b2 := mat.NewVecDense(1+nc, nil)
	for i := 0; i < nc; i++ {
		b2.SetVec(1+i, -cN[i])
	}

	w, _, err := idyn.SolveQP(&Q2, &c2, A2, b2)
	if err != nil {
		return nil, false
	}

	var delta mat.VecDense
	delta.MulVec(P, w)

	out := mat.NewVecDense(n, nil)
	out.AddVec(z, &delta)
	return out, true
}

func residualNorm(R *mat.Dense, z, jstar *mat.VecDense) float64 {
	var rz mat.VecDense
	rz.MulVec(R, z)
	rz.SubVec(&rz, jstar)
	return mat.Norm(&rz, 2)
}

func hstack(a, b *mat.Dense) *mat.Dense {
	rows, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(rows, ca+cb, nil)
	out.Slice(0, rows, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, rows, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

