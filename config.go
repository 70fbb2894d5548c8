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
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnergyMode specifies how temperature is treated during a run.
type EnergyMode int

const (
	// Adiabatic runs exchange no heat with the surroundings; the
	// reaction enthalpy changes the temperature.
	Adiabatic EnergyMode = iota

	// Isothermal runs hold the temperature at the feed temperature.
	Isothermal
)

func (m EnergyMode) String() string {
	switch m {
	case Adiabatic:
		return "adiabatic"
	case Isothermal:
		return "isothermal"
	default:
		return fmt.Sprintf("EnergyMode(%d)", int(m))
	}
}

// ParseEnergyMode returns the energy mode with the given name.
func ParseEnergyMode(s string) (EnergyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adiabatic":
		return Adiabatic, nil
	case "isothermal":
		return Isothermal, nil
	}
	return -1, fmt.Errorf("equilibrium: %w: energy mode must be 'adiabatic' or 'isothermal' but is %q", ErrConfig, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EnergyMode) UnmarshalText(b []byte) error {
	v, err := ParseEnergyMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m EnergyMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Config holds solver settings.
type Config struct {
	// EnergyMode is either adiabatic or isothermal.
	EnergyMode EnergyMode

	// MaxIterations is the maximum number of Newton-Raphson iterations.
	MaxIterations int

	// MinIterations is the number of iterations that must be completed
	// before a run can be considered converged.
	MinIterations int

	// Tolerance is the convergence limit for the nondimensional
	// Newton-Raphson step norm.
	Tolerance float64

	// Damping is the fraction of the Newton-Raphson step applied to the
	// composition each iteration. It also bounds the change in any
	// mole amount per iteration relative to the total moles.
	Damping float64

	// LambdaDamping is the fraction of the Lagrange multiplier step
	// that is applied, relative to the composition step.
	LambdaDamping float64

	// UseAllSpecies specifies whether every catalog species that can be
	// formed from the feed elements is included as a possible product.
	// Otherwise only the feed species and the species in Products are used.
	UseAllSpecies bool

	// Products lists additional species to include as possible products.
	Products []string

	// Inert lists species that do not react. Inert species pass
	// through the run unchanged.
	Inert []string

	// FugacityDerivatives specifies whether the composition derivatives of
	// the fugacity coefficients are included in the Jacobian.
	FugacityDerivatives bool

	// MaxBalanceError is the largest relative element balance error
	// allowed during a run. Zero disables the check.
	MaxBalanceError float64

	// FailOnNonConvergence specifies whether reaching MaxIterations
	// returns ErrNotConverged instead of a non-converged result.
	FailOnNonConvergence bool

	// MaxTemperatureStep is the largest adiabatic temperature change
	// allowed in one iteration [K].
	MaxTemperatureStep float64

	// ConditionLimit is the largest condition number of the scaled
	// Jacobian for which a direct solve is trusted.
	ConditionLimit float64
}

// DefaultConfig returns the default solver settings.
func DefaultConfig() *Config {
	return &Config{
		EnergyMode:          Adiabatic,
		MaxIterations:       5000,
		MinIterations:       25,
		Tolerance:           1.e-8,
		Damping:             0.05,
		LambdaDamping:       1,
		UseAllSpecies:       true,
		FugacityDerivatives: true,
		MaxTemperatureStep:  1000,
		ConditionLimit:      1.e14,
	}
}

// ReadConfig reads a TOML configuration from r. Settings missing from r
// keep their default values.
func ReadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("equilibrium: %w: %v", ErrConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the settings for errors.
func (c *Config) Validate() error {
	switch {
	case c.EnergyMode != Adiabatic && c.EnergyMode != Isothermal:
		return fmt.Errorf("equilibrium: %w: invalid energy mode %v", ErrConfig, c.EnergyMode)
	case c.MaxIterations < 1:
		return fmt.Errorf("equilibrium: %w: MaxIterations must be at least 1 but is %d", ErrConfig, c.MaxIterations)
	case c.MinIterations < 0 || c.MinIterations > c.MaxIterations:
		return fmt.Errorf("equilibrium: %w: MinIterations must be between 0 and MaxIterations but is %d", ErrConfig, c.MinIterations)
	case !(c.Tolerance > 0):
		return fmt.Errorf("equilibrium: %w: Tolerance must be positive but is %g", ErrConfig, c.Tolerance)
	case !(c.Damping > 0 && c.Damping <= 1):
		return fmt.Errorf("equilibrium: %w: Damping must be in (0, 1] but is %g", ErrConfig, c.Damping)
	case !(c.LambdaDamping > 0):
		return fmt.Errorf("equilibrium: %w: LambdaDamping must be positive but is %g", ErrConfig, c.LambdaDamping)
	case c.MaxBalanceError < 0:
		return fmt.Errorf("equilibrium: %w: MaxBalanceError must not be negative but is %g", ErrConfig, c.MaxBalanceError)
	case !(c.MaxTemperatureStep > 0):
		return fmt.Errorf("equilibrium: %w: MaxTemperatureStep must be positive but is %g", ErrConfig, c.MaxTemperatureStep)
	case !(c.ConditionLimit > 1):
		return fmt.Errorf("equilibrium: %w: ConditionLimit must be greater than 1 but is %g", ErrConfig, c.ConditionLimit)
	}
	return nil
}
