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
	"fmt"
)

var (
	// ErrConfig is returned (wrapped) for invalid solver configurations.
	ErrConfig = errors.New("invalid configuration")

	// ErrSingular is returned when the Newton-Raphson system cannot be
	// solved even after constraint reduction and a pseudo-inverse fallback.
	ErrSingular = errors.New("singular jacobian")

	// ErrNotConverged is returned when the maximum number of iterations is
	// reached and Config.FailOnNonConvergence is set.
	ErrNotConverged = errors.New("did not converge")

	// ErrMassBalance is returned when the element balance error exceeds
	// Config.MaxBalanceError.
	ErrMassBalance = errors.New("element balance error exceeds limit")

	// ErrNoSpecies is returned when there is nothing to equilibrate.
	ErrNoSpecies = errors.New("no species")
)

// RunawayError is returned when the adiabatic temperature update in a
// single iteration is larger than Config.MaxTemperatureStep.
type RunawayError struct {
	Iteration   int
	Step        float64 // K
	Temperature float64 // K, before the step
}

func (e *RunawayError) Error() string {
	return fmt.Sprintf("equilibrium: temperature step of %.4g K at iteration %d "+
		"(T = %.6g K) is numerically unstable; try a smaller damping factor",
		e.Step, e.Iteration, e.Temperature)
}
