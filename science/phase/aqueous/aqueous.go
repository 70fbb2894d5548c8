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

// Package aqueous provides a liquid water phase model. The solvent
// follows Raoult's law with an Antoine saturation pressure, dissolved
// gases follow Henry's law, and non-ideality is described by symmetric
// multicomponent Margules parameters.
package aqueous

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/equilibrium"
)

//go:embed aqueous.toml
var parameterData []byte

// lnExcluded is ln(φ) for species that do not dissolve.
var lnExcluded = math.Log(1.e10)

// Antoine holds the coefficients of log10(Psat/bar) = A - B/(T + C).
type Antoine struct {
	A, B, C float64
}

// SaturationPressure returns the vapor pressure [bar] at temperature T [K].
func (a Antoine) SaturationPressure(T float64) float64 {
	return math.Pow(10, a.A-a.B/(T+a.C))
}

// Henry holds a Henry's law volatility constant H [bar] at 298.15 K and
// its van 't Hoff temperature coefficient [K].
type Henry struct {
	H        float64
	VantHoff float64
}

// Constant returns the Henry's law constant [bar] at temperature T [K].
func (h Henry) Constant(T float64) float64 {
	return h.H * math.Exp(-h.VantHoff*(1/T-1/equilibrium.TRef))
}

// Margules is a symmetric binary interaction parameter, in units of RT.
type Margules struct {
	I, J string
	A    float64
}

// Parameters holds the aqueous phase parameters.
type Parameters struct {
	Solvent  string
	Antoine  Antoine
	Henry    map[string]Henry
	Margules []Margules
}

// ReadParameters reads parameters in TOML format from r.
func ReadParameters(r io.Reader) (*Parameters, error) {
	p := new(Parameters)
	if _, err := toml.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("aqueous: reading parameters: %v", err)
	}
	if p.Solvent == "" {
		return nil, fmt.Errorf("aqueous: no solvent specified")
	}
	for name, h := range p.Henry {
		if !(h.H > 0) {
			return nil, fmt.Errorf("aqueous: Henry's law constant for %s must be positive", name)
		}
	}
	return p, nil
}

// DefaultParameters returns the parameters distributed with this package.
func DefaultParameters() (*Parameters, error) {
	return ReadParameters(bytes.NewReader(parameterData))
}

// Model is an aqueous phase model.
type Model struct {
	params *Parameters
}

// New returns an aqueous phase model with the given parameters.
func New(p *Parameters) *Model { return &Model{params: p} }

// Type returns equilibrium.Aqueous.
func (m *Model) Type() equilibrium.ModelType { return equilibrium.Aqueous }

type role int

const (
	excluded role = iota
	solvent
	dissolved
)

// NewProvider returns a fugacity provider for the given species.
func (m *Model) NewProvider(species []*equilibrium.Species) (equilibrium.FugacityProvider, error) {
	ns := len(species)
	p := &provider{
		m:     m,
		role:  make([]role, ns),
		henry: make([]Henry, ns),
		a:     make([][]float64, ns),
		x:     make([]float64, ns),
		ax:    make([]float64, ns),
		lnPhi: make([]float64, ns),
	}
	index := make(map[string]int, ns)
	for i, s := range species {
		index[s.Name] = i
		p.a[i] = make([]float64, ns)
		if s.Name == m.params.Solvent {
			p.role[i] = solvent
			continue
		}
		if h, ok := m.params.Henry[s.Name]; ok {
			p.role[i], p.henry[i] = dissolved, h
		}
	}
	for _, mg := range m.params.Margules {
		i, iok := index[mg.I]
		j, jok := index[mg.J]
		if !iok || !jok || i == j {
			continue
		}
		p.a[i][j], p.a[j][i] = mg.A, mg.A
	}
	return p, nil
}

type provider struct {
	m     *Model
	role  []role
	henry []Henry
	a     [][]float64

	ntot, q float64
	x, ax   []float64
	lnPhi   []float64
}

// Update calculates the fugacity coefficients at the given state.
func (p *provider) Update(T, P float64, moles []float64) error {
	if !(T > 0) || !(P > 0) {
		return fmt.Errorf("aqueous: invalid state T=%g K, P=%g bar", T, P)
	}
	p.ntot = 0
	for _, v := range moles {
		p.ntot += v
	}
	if !(p.ntot > 0) {
		return fmt.Errorf("aqueous: empty phase")
	}
	for i, v := range moles {
		p.x[i] = v / p.ntot
	}
	p.q = 0
	for i := range p.x {
		s := 0.
		for j, xj := range p.x {
			s += p.a[i][j] * xj
		}
		p.ax[i] = s
		p.q += 0.5 * p.x[i] * s
	}
	psat := p.m.params.Antoine.SaturationPressure(T)
	for i, r := range p.role {
		lnGamma := p.ax[i] - p.q
		switch r {
		case solvent:
			p.lnPhi[i] = lnGamma + math.Log(psat/P)
		case dissolved:
			p.lnPhi[i] = lnGamma + math.Log(p.henry[i].Constant(T)/P)
		default:
			p.lnPhi[i] = lnExcluded
		}
	}
	return nil
}

// LnPhi returns the effective ln(φ) of species i, which includes the
// solvent vapor pressure or the Henry's law constant.
func (p *provider) LnPhi(i int) (float64, error) {
	return p.lnPhi[i], nil
}

// DLnPhiDn returns ∂ln(φ_i)/∂n_j. Only the activity coefficient term
// depends on composition.
func (p *provider) DLnPhiDn(i, j int) (float64, error) {
	if p.role[i] == excluded {
		return 0, nil
	}
	return (p.a[i][j] - p.ax[i] - p.ax[j] + 2*p.q) / p.ntot, nil
}
