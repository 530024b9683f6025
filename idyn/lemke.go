package idyn

import "github.com/wojiaojiao/Pacer/state"

// lemke solves the linear complementarity problem w = M.z + q, z >= 0,
// w >= 0, z'w = 0 by Lemke's complementary pivoting method with
// covering vector d = 1. Grounded on the LCP solve
// original_source/estimatefrict.cpp::solve_qp delegates to
// (Moby::Optimization::lcp_lemke_regularized); gonum has no LCP
// primitive, so the pivoting itself is hand-rolled here rather than
// on a third-party solver.
//
// maxPivots bounds the number of complementary pivots attempted
// (spec.md §5's "pivot limit = 10.n").
func lemke(m [][]float64, q []float64, maxPivots int) ([]float64, bool) {
	n := len(q)
	if n == 0 {
		return []float64{}, true
	}

	// Trivial solution: z=0, w=q already feasible.
	allNonNeg := true
	for _, qi := range q {
		if qi < 0 {
			allNonNeg = false
			break
		}
	}
	if allNonNeg {
		return make([]float64, n), true
	}

	// Variable indices: 0..n-1 = w, n..2n-1 = z, 2n = z0 (artificial).
	// tab[i] holds coefficients for columns 0..2n, rhs[i] the value of
	// basis[i] expressed in terms of the (zero-valued) nonbasic vars.
	tab := make([][]float64, n)
	rhs := make([]float64, n)
	basis := make([]int, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 2*n+1)
		row[i] = 1 // w_i coefficient
		for j := 0; j < n; j++ {
			row[n+j] = -m[i][j]
		}
		row[2*n] = -1 // covering vector d_i = 1
		tab[i] = row
		rhs[i] = q[i]
		basis[i] = i
	}

	pivot := func(r, c int) {
		piv := tab[r][c]
		for j := range tab[r] {
			tab[r][j] /= piv
		}
		rhs[r] /= piv
		for i := 0; i < n; i++ {
			if i == r {
				continue
			}
			factor := tab[i][c]
			if factor == 0 {
				continue
			}
			for j := range tab[i] {
				tab[i][j] -= factor * tab[r][j]
			}
			rhs[i] -= factor * rhs[r]
		}
	}

	// Initial entering variable is z0; the leaving row is the most
	// negative rhs entry.
	r := 0
	for i := 1; i < n; i++ {
		if rhs[i] < rhs[r] {
			r = i
		}
	}
	enterCol := 2 * n
	pivots := 0

	for {
		if pivots >= maxPivots {
			return nil, false
		}
		pivots++

		leavingVar := basis[r]
		pivot(r, enterCol)
		basis[r] = enterCol

		if leavingVar == 2*n {
			break // z0 left the basis: complementary solution found.
		}

		// Complement of the variable that just left enters next.
		if leavingVar < n {
			enterCol = n + leavingVar // w_k left -> z_k enters
		} else {
			enterCol = leavingVar - n // z_k left -> w_k enters
		}

		bestRow := -1
		for i := 0; i < n; i++ {
			if tab[i][enterCol] <= 1e-12 {
				continue
			}
			if bestRow == -1 || lexSmaller(tab, rhs, i, bestRow, enterCol, n) {
				bestRow = i
			}
		}
		if bestRow == -1 {
			return nil, false // ray termination: no feasible pivot
		}
		r = bestRow
	}

	z := make([]float64, n)
	for i := 0; i < n; i++ {
		if basis[i] >= n && basis[i] < 2*n {
			z[basis[i]-n] = rhs[i]
		}
	}
	return z, true
}

// lexSmaller reports whether row i's ratio test result is
// lexicographically smaller than row j's: first by the ratio itself,
// then, on a tie, by the row's own values in the original w-columns
// (0..n-1), each scaled by its entering-column coefficient. Plain
// min-ratio selection stalls (false ray termination) on LCPs with
// more than one complementary slack reaching zero at once, which this
// reduction's [[Q,-Q,-A'],[-Q,Q,A'],[A,-A,0]] block structure produces
// whenever a contact's QP optimum sits exactly on a box boundary.
func lexSmaller(tab [][]float64, rhs []float64, i, j, enterCol, n int) bool {
	ci, cj := tab[i][enterCol], tab[j][enterCol]
	ri, rj := rhs[i]/ci, rhs[j]/cj
	if ri != rj {
		return ri < rj
	}
	for k := 0; k < n; k++ {
		vi, vj := tab[i][k]/ci, tab[j][k]/cj
		if vi != vj {
			return vi < vj
		}
	}
	return false
}

// lemkeRegularized retries lemke with increasing diagonal
// perturbation of M, per spec.md §4.6's "regularization (diagonal
// perturbation up to 1e-4 on failure)". The second return reports
// whether a nonzero perturbation was needed to reach the returned
// solution.
func lemkeRegularized(m [][]float64, q []float64, maxPivots int) ([]float64, bool, error) {
	n := len(q)
	regs := []float64{0, 1e-8, 1e-6, 1e-4}
	for _, eps := range regs {
		mm := m
		if eps > 0 {
			mm = make([][]float64, n)
			for i := range m {
				row := make([]float64, n)
				copy(row, m[i])
				row[i] += eps
				mm[i] = row
			}
		}
		if z, ok := lemke(mm, q, maxPivots); ok {
			return z, eps > 0, nil
		}
	}
	return nil, false, &state.Error{Kind: state.LCPUnsolvable, Op: "idyn.lemkeRegularized"}
}
