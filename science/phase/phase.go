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

// Package phase creates phase models by type.
package phase

import (
	"fmt"

	"github.com/spatialmodel/equilibrium"
	"github.com/spatialmodel/equilibrium/science/phase/aqueous"
	"github.com/spatialmodel/equilibrium/science/phase/cubic"
)

// New returns a phase model of type t with its default parameters.
func New(t equilibrium.ModelType) (equilibrium.PhaseModel, error) {
	switch t {
	case equilibrium.IdealGas:
		return equilibrium.IdealGasPhase{}, nil
	case equilibrium.PengRobinson, equilibrium.SRK:
		p, err := cubic.DefaultParameters()
		if err != nil {
			return nil, err
		}
		if t == equilibrium.PengRobinson {
			return cubic.NewPengRobinson(p), nil
		}
		return cubic.NewSRK(p), nil
	case equilibrium.Aqueous:
		p, err := aqueous.DefaultParameters()
		if err != nil {
			return nil, err
		}
		return aqueous.New(p), nil
	}
	return nil, fmt.Errorf("phase: %w: unsupported phase model %v", equilibrium.ErrConfig, t)
}

// Parse returns one phase model for each of the given names, in order.
// An empty list returns a single ideal gas phase.
func Parse(names []string) ([]equilibrium.PhaseModel, error) {
	if len(names) == 0 {
		return []equilibrium.PhaseModel{equilibrium.IdealGasPhase{}}, nil
	}
	models := make([]equilibrium.PhaseModel, len(names))
	for i, name := range names {
		t, err := equilibrium.ParseModelType(name)
		if err != nil {
			return nil, err
		}
		if models[i], err = New(t); err != nil {
			return nil, err
		}
	}
	return models, nil
}
