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
	"sort"

	"github.com/ctessum/unit"
)

// Feed is the inlet to an equilibrium calculation.
type Feed struct {
	// Composition holds the amount of each species [mol or mol/s].
	Composition map[string]float64

	Temperature float64 // K
	Pressure    float64 // bar
}

// NewFeed creates a feed from a composition and dimensioned temperature
// and pressure.
func NewFeed(composition map[string]float64, temperature, pressure *unit.Unit) (*Feed, error) {
	if err := temperature.Check(unit.Kelvin); err != nil {
		return nil, fmt.Errorf("equilibrium: %w: feed temperature: %v", ErrConfig, err)
	}
	if err := pressure.Check(unit.Pascal); err != nil {
		return nil, fmt.Errorf("equilibrium: %w: feed pressure: %v", ErrConfig, err)
	}
	f := &Feed{
		Composition: composition,
		Temperature: temperature.Value(),
		Pressure:    pressure.Value() / 1.e5,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the feed for errors.
func (f *Feed) Validate() error {
	if !(f.Temperature > 0) || math.IsInf(f.Temperature, 0) {
		return fmt.Errorf("equilibrium: %w: feed temperature must be positive but is %g K", ErrConfig, f.Temperature)
	}
	if !(f.Pressure > 0) || math.IsInf(f.Pressure, 0) {
		return fmt.Errorf("equilibrium: %w: feed pressure must be positive but is %g bar", ErrConfig, f.Pressure)
	}
	total := 0.
	for name, v := range f.Composition {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("equilibrium: %w: invalid amount %g for feed species %s", ErrConfig, v, name)
		}
		total += v
	}
	if total == 0 {
		return fmt.Errorf("equilibrium: %w: feed is empty", ErrNoSpecies)
	}
	return nil
}

// names returns the feed species names in sorted order.
func (f *Feed) names() []string {
	o := make([]string, 0, len(f.Composition))
	for n := range f.Composition {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// PhaseResult holds the outlet of one phase.
type PhaseResult struct {
	Model       ModelType
	Composition map[string]float64
	Moles       float64
}

// Result holds the outcome of an equilibrium calculation.
type Result struct {
	// Composition holds the total outlet amount of each species,
	// summed over phases and including species that did not react.
	Composition map[string]float64

	// Phases holds the outlet of each phase.
	Phases []PhaseResult

	Temperature float64 // K
	Pressure    float64 // bar

	// ReactionEnthalpy is the cumulative change in formation enthalpy
	// of the mixture [J per unit of feed amount]. It is negative when
	// heat is released.
	ReactionEnthalpy float64

	// TemperatureDrift is the cumulative temperature change [K].
	TemperatureDrift float64

	Iterations   int
	Converged    bool
	Status       Status
	ResidualNorm float64
	StepNorm     float64

	// BalanceError is the largest relative element balance error.
	BalanceError float64

	// History holds the step norm at each iteration.
	History []float64
}

// Fractions returns the mole fraction of each species in the outlet.
func (r *Result) Fractions() map[string]float64 {
	total := 0.
	for _, v := range r.Composition {
		total += v
	}
	o := make(map[string]float64, len(r.Composition))
	for k, v := range r.Composition {
		o[k] = v / total
	}
	return o
}

// ElementTotals returns the moles of atoms of each element in the given
// composition. Species that are not in the catalog are ignored.
func (c *Catalog) ElementTotals(composition map[string]float64) [NumElements]float64 {
	var o [NumElements]float64
	for name, v := range composition {
		s, ok := c.Get(name)
		if !ok {
			continue
		}
		for e := range o {
			o[e] += v * s.Elements[e]
		}
	}
	return o
}
