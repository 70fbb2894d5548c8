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
	"strings"

	"github.com/sirupsen/logrus"
)

// ModelType identifies a phase thermodynamic model.
type ModelType int

// Available phase models.
const (
	IdealGas ModelType = iota
	PengRobinson
	SRK
	Aqueous
)

func (m ModelType) String() string {
	switch m {
	case IdealGas:
		return "IdealGas"
	case PengRobinson:
		return "PengRobinson"
	case SRK:
		return "SRK"
	case Aqueous:
		return "Aqueous"
	default:
		return fmt.Sprintf("ModelType(%d)", int(m))
	}
}

// ParseModelType returns the model type with the given name. Matching is
// case-insensitive and ignores dashes, so "peng-robinson" is accepted.
func ParseModelType(s string) (ModelType, error) {
	k := strings.ToLower(strings.Replace(strings.TrimSpace(s), "-", "", -1))
	switch k {
	case "idealgas", "ideal":
		return IdealGas, nil
	case "pengrobinson", "pr":
		return PengRobinson, nil
	case "srk", "soaveredlichkwong":
		return SRK, nil
	case "aqueous", "water":
		return Aqueous, nil
	}
	return -1, fmt.Errorf("equilibrium: %w: unknown phase model %q", ErrConfig, s)
}

// PhaseModel is an interface for the thermodynamic model of a single phase.
// PhaseModel values hold only parameters and can be shared between solvers.
type PhaseModel interface {
	// Type returns the model type.
	Type() ModelType

	// NewProvider returns a fugacity provider for a mixture of the
	// given species. The provider is owned by a single solver run.
	NewProvider(species []*Species) (FugacityProvider, error)
}

// FugacityProvider calculates fugacity coefficients for one phase. It
// holds scratch space that is reused between iterations, so it must not be
// shared between concurrently running solvers.
type FugacityProvider interface {
	// Update sets the temperature [K], pressure [bar] and composition
	// [mol] of the phase.
	Update(T, P float64, moles []float64) error

	// LnPhi returns the natural log of the fugacity coefficient of
	// species i at the last updated state.
	LnPhi(i int) (float64, error)

	// DLnPhiDn returns ∂ln(φ_i)/∂n_j at the last updated state [1/mol].
	DLnPhiDn(i, j int) (float64, error)
}

// IdealGasPhase is an ideal gas phase model, where all fugacity
// coefficients are one.
type IdealGasPhase struct{}

// Type returns IdealGas.
func (IdealGasPhase) Type() ModelType { return IdealGas }

// NewProvider returns a provider of unit fugacity coefficients.
func (IdealGasPhase) NewProvider([]*Species) (FugacityProvider, error) {
	return idealProvider{}, nil
}

type idealProvider struct{}

func (idealProvider) Update(_, _ float64, _ []float64) error { return nil }
func (idealProvider) LnPhi(int) (float64, error)             { return 0, nil }
func (idealProvider) DLnPhiDn(int, int) (float64, error)     { return 0, nil }

// safeProvider wraps a FugacityProvider so that failures degrade to
// ideal behavior instead of stopping the run.
type safeProvider struct {
	p     FugacityProvider
	phase int
	log   logrus.FieldLogger
	ok    bool // whether the last update succeeded
}

func (s *safeProvider) update(T, P float64, moles []float64) {
	err := s.p.Update(T, P, moles)
	s.ok = err == nil
	if err != nil {
		s.log.WithFields(logrus.Fields{"phase": s.phase}).Debugf("equilibrium: fugacity update failed, using ideal values: %v", err)
	}
}

func (s *safeProvider) lnPhi(i int) float64 {
	if !s.ok {
		return 0
	}
	v, err := s.p.LnPhi(i)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (s *safeProvider) dLnPhiDn(i, j int) float64 {
	if !s.ok {
		return 0
	}
	v, err := s.p.DLnPhiDn(i, j)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
