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

// Package equilibrium calculates the chemical (and optionally phase)
// equilibrium of a reacting mixture by minimizing its total Gibbs free
// energy subject to element conservation.
//
// The solver is a damped Newton-Raphson iteration on the first-order
// optimality conditions of the minimization problem: one chemical-potential
// residual per species and phase, and one mole-balance residual per
// independent element, with one Lagrange multiplier per element. In
// adiabatic mode the temperature is updated from an energy balance as the
// composition evolves.
//
// A run is organized as a pipeline of StateManipulators, in the same way
// as a model simulation: InitFuncs prepare the State and RunFuncs are
// called repeatedly until one of them marks the State as done.
package equilibrium

// Version gives the version number.
const Version = "0.3.0"

// Physical constants and reference conditions.
const (
	// R is the universal gas constant [J/mol/K].
	R = 8.314462618

	// TRef is the reference temperature for formation properties [K].
	TRef = 298.15

	// PRef is the standard-state pressure [bar].
	PRef = 1.0

	// MinMoles is the floor applied to every reacting mole amount
	// so that logarithms and 1/n terms stay finite.
	MinMoles = 1.e-15

	// TraceMoles is the amount of a product species that is
	// added to the mixture before the first iteration.
	TraceMoles = 1.e-10
)
