/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package equilibrium

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// pinvTolerance is the singular value cutoff, relative to the largest
// singular value, used in pseudo-inverse solves.
const pinvTolerance = 1.e-10

// errIllConditioned is returned by linearSolve when the scaled matrix is
// too poorly conditioned for a direct solve and no fallback is allowed.
var errIllConditioned = errors.New("equilibrium: ill-conditioned jacobian")

// Jacobian returns the derivative of Residuals with respect to the
// Newton-Raphson variables: the moles of each species in each phase
// followed by the Lagrange multipliers.
func (s *State) Jacobian() *mat.Dense {
	s.updateProviders()
	return s.jacobian(nil)
}

// jacobian assembles the Jacobian into dst, which is reused if it has
// the right size. The fugacity providers must be up to date.
func (s *State) jacobian(dst *mat.Dense) *mat.Dense {
	ns, np, ne := len(s.Species), len(s.Moles), len(s.Elements)
	size := s.size()
	if dst == nil {
		dst = mat.NewDense(size, size, nil)
	} else if r, _ := dst.Dims(); r != size {
		dst = mat.NewDense(size, size, nil)
	} else {
		dst.Zero()
	}
	RT := R * s.Temperature
	for p, n := range s.Moles {
		ntot := s.phaseTotal(p)
		prov := s.providers[p]
		for i := 0; i < ns; i++ {
			row := p*ns + i
			for j := 0; j < ns; j++ {
				v := -1 / ntot
				if i == j {
					v += 1 / math.Max(n[i], MinMoles)
				}
				if s.cfg.FugacityDerivatives {
					v += prov.dLnPhiDn(i, j)
				}
				dst.Set(row, p*ns+j, RT*v)
			}
			for k := 0; k < ne; k++ {
				dst.Set(row, ns*np+k, -s.coef[i][k])
				dst.Set(ns*np+k, row, s.coef[i][k])
			}
		}
	}
	return dst
}

// pinFloorSpecies holds species that are at the mole floor and would
// decrease further at the floor. Their Jacobian rows are replaced with
// identity rows and their residuals are set to zero, so the Newton step
// leaves them unchanged.
func (s *State) pinFloorSpecies() {
	ns := len(s.Species)
	size := s.size()
	for p, n := range s.Moles {
		for i := range n {
			row := p*ns + i
			if n[i] > 10*MinMoles || s.residual[row] <= 0 {
				continue
			}
			for c := 0; c < size; c++ {
				s.jac.Set(row, c, 0)
			}
			s.jac.Set(row, row, 1)
			s.residual[row] = 0
		}
	}
}

// equilibrate scales the rows and then the columns of a in place so
// that the largest absolute value in each is one. It returns the row and
// column scale factors.
func equilibrate(a *mat.Dense) (rs, cs []float64) {
	r, c := a.Dims()
	rs = make([]float64, r)
	for i := 0; i < r; i++ {
		row := a.RawRowView(i)
		m := floats.Norm(row, math.Inf(1))
		if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			m = 1
		}
		rs[i] = 1 / m
		floats.Scale(rs[i], row)
	}
	cs = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, a)
		m := floats.Norm(col, math.Inf(1))
		if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			m = 1
		}
		cs[j] = 1 / m
	}
	for i := 0; i < r; i++ {
		floats.Mul(a.RawRowView(i), cs)
	}
	return rs, cs
}

// linearSolve returns x such that j·x = b. The system is equilibrated
// and solved by LU decomposition. If the condition number of the scaled
// matrix is larger than condLimit or not finite, it is solved with a
// pseudo-inverse when pinv is true and errIllConditioned is returned
// otherwise. j is not modified. The second return value reports whether
// the pseudo-inverse was used.
func linearSolve(j *mat.Dense, b []float64, condLimit float64, pinv bool) ([]float64, bool, error) {
	n := len(b)
	if n == 0 {
		return nil, false, nil
	}
	a := mat.DenseCopyOf(j)
	rs, cs := equilibrate(a)
	bs := make([]float64, n)
	floats.MulTo(bs, rs, b)

	var y []float64
	usedPinv := false
	var lu mat.LU
	lu.Factorize(a)
	cond := lu.Cond()
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > condLimit {
		if !pinv {
			return nil, false, errIllConditioned
		}
		var err error
		if y, err = pseudoSolve(a, bs); err != nil {
			return nil, true, err
		}
		usedPinv = true
	} else {
		var x mat.VecDense
		if err := lu.SolveVecTo(&x, false, mat.NewVecDense(n, bs)); err != nil {
			if !pinv {
				return nil, false, errIllConditioned
			}
			if y, err = pseudoSolve(a, bs); err != nil {
				return nil, true, err
			}
			usedPinv = true
		} else {
			y = make([]float64, n)
			for i := range y {
				y[i] = x.AtVec(i)
			}
		}
	}
	x := make([]float64, n)
	floats.MulTo(x, cs, y)
	if !finite(x) {
		return nil, usedPinv, ErrSingular
	}
	if floats.Norm(x, math.Inf(1)) == 0 && floats.Norm(b, math.Inf(1)) != 0 {
		return nil, usedPinv, ErrSingular
	}
	return x, usedPinv, nil
}

// pseudoSolve returns the minimum-norm least-squares solution of a·x = b
// using the singular value decomposition of a.
func pseudoSolve(a *mat.Dense, b []float64) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrSingular
	}
	sv := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	if len(sv) == 0 || !(sv[0] > 0) {
		return nil, ErrSingular
	}
	cutoff := pinvTolerance * sv[0]
	n := len(b)
	w := make([]float64, len(sv))
	col := make([]float64, n)
	for k, sigma := range sv {
		if sigma <= cutoff {
			continue
		}
		mat.Col(col, k, &u)
		w[k] = floats.Dot(col, b) / sigma
	}
	var x mat.VecDense
	x.MulVec(&v, mat.NewVecDense(len(w), w))
	o := make([]float64, n)
	for i := range o {
		o[i] = x.AtVec(i)
	}
	return o, nil
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
