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
)

// minFraction is the floor applied to mole fractions before taking
// their logarithm.
const minFraction = 1.e-300

// gibbsEnergies returns the standard Gibbs energy of each reacting
// species at the current temperature. Values are cached until the
// temperature changes.
func (s *State) gibbsEnergies() []float64 {
	if s.gibbs != nil && s.gibbsT == s.Temperature {
		return s.gibbs
	}
	if len(s.gibbs) != len(s.Species) {
		s.gibbs = make([]float64, len(s.Species))
	}
	for i, sp := range s.Species {
		s.gibbs[i] = sp.Gibbs(s.Temperature)
	}
	s.gibbsT = s.Temperature
	return s.gibbs
}

// phaseTotal returns the total moles in phase p. Non-reacting species
// are assigned to the first phase.
func (s *State) phaseTotal(p int) float64 {
	t := 0.
	for _, v := range s.Moles[p] {
		t += v
	}
	if p == 0 {
		t += s.inertTotal
	}
	return math.Max(t, MinMoles)
}

// ChemicalPotential returns the chemical potential of reacting species i
// in phase p at the current state [J/mol]:
//
//	μ = G°(T) + RT·ln(x·φ·P/P°)
func (s *State) ChemicalPotential(p, i int) float64 {
	s.updateProviders()
	return s.chemicalPotential(p, i, s.phaseTotal(p))
}

func (s *State) chemicalPotential(p, i int, ntot float64) float64 {
	x := math.Max(s.Moles[p][i]/ntot, minFraction)
	lnPhi := s.providers[p].lnPhi(i)
	return s.gibbsEnergies()[i] + R*s.Temperature*(math.Log(x)+lnPhi+math.Log(s.Pressure/PRef))
}

// Residuals returns the first-order optimality residuals at the current
// state: one chemical potential residual μ_i - Σ_k λ_k·a_ik for each species
// in each phase, followed by one mole balance residual Σ a_ik·n_i - b_k
// for each independent element.
func (s *State) Residuals() []float64 {
	s.updateProviders()
	return s.residuals(nil)
}

// residuals calculates the residuals into dst, which is reused if it is
// large enough. The fugacity providers must be up to date.
func (s *State) residuals(dst []float64) []float64 {
	ns, ne := len(s.Species), len(s.Elements)
	size := s.size()
	if cap(dst) < size {
		dst = make([]float64, size)
	}
	dst = dst[:size]
	for p := range s.Moles {
		ntot := s.phaseTotal(p)
		for i := range s.Species {
			mu := s.chemicalPotential(p, i, ntot)
			for k := 0; k < ne; k++ {
				mu -= s.Lambda[k] * s.coef[i][k]
			}
			dst[p*ns+i] = mu
		}
	}
	s.elementResiduals(dst[ns*len(s.Moles):])
	return dst
}

// elementResiduals calculates the mole balance residual of each
// independent element across all phases into dst.
func (s *State) elementResiduals(dst []float64) {
	for k := range s.Elements {
		v := -s.Targets[k]
		for _, n := range s.Moles {
			for i := range s.Species {
				v += s.coef[i][k] * n[i]
			}
		}
		dst[k] = v
	}
}
