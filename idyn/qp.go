package idyn

import (
	"gonum.org/v1/gonum/mat"
)

// SolveQP solves min ||Q-quadratic form: 0.5 z'Qz + c'z|| subject to
// A.z >= b, via the symmetric LCP reduction
// [[Q,-Q,-A'],[-Q,Q,A'],[A,-A,0]], the shared QP-via-LCP primitive
// grounded on original_source/estimatefrict.cpp::solve_qp. Used by
// both this package's own Stage I/II inverse-dynamics solve and by
// the friction package's Stage I/II friction estimate.
//
// The second return reports whether lemkeRegularized needed a nonzero
// diagonal perturbation to converge, for callers that want to surface
// that as a fallback signal.
func SolveQP(Q *mat.Dense, c *mat.VecDense, A *mat.Dense, b *mat.VecDense) (*mat.VecDense, bool, error) {
	n, _ := Q.Dims()
	m := 0
	if A != nil {
		m, _ = A.Dims()
	}

	size := 2*n + m
	mm := make([][]float64, size)
	for i := range mm {
		mm[i] = make([]float64, size)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			qv := Q.At(i, j)
			mm[i][j] = qv
			mm[n+i][n+j] = qv
			mm[i][n+j] = -qv
			mm[n+i][j] = -qv
		}
	}

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			av := A.At(i, j)
			mm[2*n+i][j] = av
			mm[2*n+i][n+j] = -av
			mm[j][2*n+i] = -av
			mm[n+j][2*n+i] = av
		}
	}

	q := make([]float64, size)
	for i := 0; i < n; i++ {
		q[i] = c.AtVec(i)
		q[n+i] = -c.AtVec(i)
	}
	for i := 0; i < m; i++ {
		q[2*n+i] = -b.AtVec(i)
	}

	zzz, regularized, err := lemkeRegularized(mm, q, 10*size)
	if err != nil {
		return nil, false, err
	}

	x := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x.SetVec(i, zzz[i]-zzz[n+i])
	}
	return x, regularized, nil
}

// NullSpace returns an orthonormal basis for the null space of the
// symmetric PSD matrix q (spec.md §4.6's Stage II projection), via
// SVD with zero-singular-value tolerance eps*rows*sigmaMax. An empty
// (0x0) matrix stands for a trivial null space. Exported for reuse by
// the friction package's own Stage II.
func NullSpace(q *mat.Dense) *mat.Dense {
	rows, cols := q.Dims()

	var svd mat.SVD
	ok := svd.Factorize(q, mat.SVDFull)
	if !ok {
		return &mat.Dense{}
	}
	s := svd.Values(nil)

	var v mat.Dense
	svd.VTo(&v)

	sigmaMax := 0.0
	if len(s) > 0 {
		sigmaMax = s[0]
	}
	tol := machineEps * float64(rows) * sigmaMax

	rank := 0
	for _, sv := range s {
		if sv > tol {
			rank++
		}
	}
	m := cols - rank
	if m <= 0 {
		return &mat.Dense{}
	}

	p := mat.NewDense(cols, m, nil)
	p.Copy(v.Slice(0, cols, rank, cols))
	return p
}

const machineEps = 2.220446049250313e-16
