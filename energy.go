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

// FormationEnthalpy returns the enthalpy of the reacting mixture at the
// reference temperature, Σ n_i·ΔHf_i [J].
func (s *State) FormationEnthalpy() float64 {
	h := 0.
	for i, sp := range s.Species {
		h += s.TotalMoles(i) * sp.Hf
	}
	return h
}

// HeatCapacity returns the heat capacity of the whole mixture at the
// current temperature [J/K]. Non-reacting species that are missing from
// the catalog do not contribute.
func (s *State) HeatCapacity() float64 {
	T := s.Temperature
	cp := 0.
	for i, sp := range s.Species {
		cp += s.TotalMoles(i) * sp.HeatCapacity(T)
	}
	for i, sp := range s.inertKnown {
		cp += s.inertMoles[i] * sp.HeatCapacity(T)
	}
	return cp
}

// Enthalpy returns the total enthalpy of the mixture at the current
// temperature [J]. Non-reacting species that are missing from the
// catalog do not contribute.
func (s *State) Enthalpy() float64 {
	T := s.Temperature
	h := 0.
	for i, sp := range s.Species {
		h += s.TotalMoles(i) * sp.Enthalpy(T)
	}
	for i, sp := range s.inertKnown {
		h += s.inertMoles[i] * sp.Enthalpy(T)
	}
	return h
}

// EnergyBalance returns a function that updates the temperature of an
// adiabatic run. The change in formation enthalpy of the mixture since
// the previous iteration is added to the reaction enthalpy and the
// temperature changes by -ΔH/Cp. A temperature change larger than
// Config.MaxTemperatureStep, or one that would make the temperature
// non-positive, stops the run with a *RunawayError. Isothermal runs are
// not changed.
func EnergyBalance() StateManipulator {
	return func(s *State) error {
		if s.cfg.EnergyMode != Adiabatic {
			return nil
		}
		h := s.FormationEnthalpy()
		if s.Iteration > 1 {
			dH := h - s.hPrev
			s.ReactionEnthalpy += dH
			if cp := s.HeatCapacity(); cp > 0 {
				dT := -dH / cp
				if math.Abs(dT) > s.cfg.MaxTemperatureStep || s.Temperature+dT <= 0 ||
					math.IsNaN(dT) {
					return &RunawayError{Iteration: s.Iteration, Step: dT, Temperature: s.Temperature}
				}
				s.Temperature += dT
				s.TemperatureDrift += dT
			}
		}
		s.hPrev = h
		return nil
	}
}
