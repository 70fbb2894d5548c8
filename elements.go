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
	"math"

	"gonum.org/v1/gonum/mat"
)

// elementTolerance is the smallest stoichiometric coefficient that
// is considered to be nonzero.
const elementTolerance = 1.e-10

// ElementTotals returns the number of moles of atoms of each element in
// the given mixture, where moles[i] is the amount of species[i].
func ElementTotals(species []*Species, moles []float64) [NumElements]float64 {
	var o [NumElements]float64
	for i, s := range species {
		for e := range o {
			o[e] += moles[i] * s.Elements[e]
		}
	}
	return o
}

// ActiveElements returns the elements that appear in at least one of
// the given species with a nonzero amount, in element order.
func ActiveElements(species []*Species, moles []float64) []Element {
	var o []Element
	for e := Element(0); e < NumElements; e++ {
		for i, s := range species {
			if moles[i] > 0 && s.HasElement(e) {
				o = append(o, e)
				break
			}
		}
	}
	return o
}

// CoefficientMatrix returns the element-by-species stoichiometric
// coefficient matrix for the given elements and species.
func CoefficientMatrix(elements []Element, species []*Species) *mat.Dense {
	a := mat.NewDense(max(len(elements), 1), max(len(species), 1), nil)
	for r, e := range elements {
		for c, s := range species {
			a.Set(r, c, s.Elements[e])
		}
	}
	return a
}

// RemoveRedundantConstraints returns the subset of elements whose rows in
// the element-by-species coefficient matrix a are linearly independent.
// Rows of a correspond to elements. The rank is found by Gaussian
// elimination with partial pivoting; if it is less than the number of
// elements, only the elements whose rows were chosen as pivots are kept.
// The returned elements are in their original order.
func RemoveRedundantConstraints(a mat.Matrix, elements []Element) []Element {
	rows, cols := a.Dims()
	if len(elements) < rows {
		rows = len(elements)
	}
	if rows == 0 {
		return nil
	}
	w := mat.DenseCopyOf(a)
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	pivots := make([]bool, rows)
	rank := 0
	for c := 0; c < cols && rank < rows; c++ {
		p := rank
		for r := rank + 1; r < rows; r++ {
			if math.Abs(w.At(r, c)) > math.Abs(w.At(p, c)) {
				p = r
			}
		}
		if math.Abs(w.At(p, c)) < elementTolerance {
			continue
		}
		if p != rank {
			swapRows(w, p, rank)
			order[p], order[rank] = order[rank], order[p]
		}
		piv := w.At(rank, c)
		for r := rank + 1; r < rows; r++ {
			f := w.At(r, c) / piv
			if f == 0 {
				continue
			}
			for k := c; k < cols; k++ {
				w.Set(r, k, w.At(r, k)-f*w.At(rank, k))
			}
		}
		pivots[order[rank]] = true
		rank++
	}
	if rank == rows {
		o := make([]Element, rows)
		copy(o, elements[:rows])
		return o
	}
	o := make([]Element, 0, rank)
	for i := 0; i < rows; i++ {
		if pivots[i] {
			o = append(o, elements[i])
		}
	}
	return o
}

func swapRows(m *mat.Dense, i, j int) {
	_, c := m.Dims()
	for k := 0; k < c; k++ {
		a, b := m.At(i, k), m.At(j, k)
		m.Set(i, k, b)
		m.Set(j, k, a)
	}
}
