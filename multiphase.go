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
	"fmt"
	"math"
)

// SeedFraction is the fraction of each species in the first phase that
// is placed in each additional phase at the start of a run.
const SeedFraction = 1.e-6

// SeedPhases returns a function that creates one phase for each model
// and a fugacity provider for each phase. All of the reacting mixture
// stays in the first phase; every other phase is seeded with a small
// positive amount of each species, taken from the first phase so that
// the element balance is unchanged.
func SeedPhases(models []PhaseModel) StateManipulator {
	return func(s *State) error {
		if len(models) == 0 {
			return fmt.Errorf("equilibrium: %w: at least one phase is required", ErrConfig)
		}
		if len(s.Moles) != 1 {
			return fmt.Errorf("equilibrium: phases must be seeded from a single-phase mixture, not %d phases", len(s.Moles))
		}
		bulk := s.Moles[0]
		s.Moles = make([][]float64, len(models))
		s.Moles[0] = bulk
		for p := 1; p < len(models); p++ {
			n := make([]float64, len(bulk))
			for i, v := range bulk {
				seed := math.Max(SeedFraction*v, TraceMoles)
				if v-seed >= MinMoles {
					bulk[i] -= seed
				}
				n[i] = seed
			}
			s.Moles[p] = n
		}

		s.providers = make([]*safeProvider, len(models))
		s.phaseTypes = make([]ModelType, len(models))
		for p, m := range models {
			prov, err := m.NewProvider(s.Species)
			if err != nil {
				return fmt.Errorf("equilibrium: %w: phase %d (%v): %v", ErrConfig, p, m.Type(), err)
			}
			s.providers[p] = &safeProvider{p: prov, phase: p, log: s.log}
			s.phaseTypes[p] = m.Type()
		}
		return nil
	}
}

// PhaseFractions returns the mole fraction of each reacting species in
// phase p. Non-reacting species count toward the total of the first phase.
func (s *State) PhaseFractions(p int) []float64 {
	ntot := s.phaseTotal(p)
	o := make([]float64, len(s.Species))
	for i, v := range s.Moles[p] {
		o[i] = v / ntot
	}
	return o
}

// PhaseMoles returns the total moles in each phase.
func (s *State) PhaseMoles() []float64 {
	o := make([]float64, len(s.Moles))
	for p := range s.Moles {
		o[p] = s.phaseTotal(p)
	}
	return o
}
