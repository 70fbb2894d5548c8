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

// Package cubic provides Peng-Robinson and Soave-Redlich-Kwong
// equation of state phase models for vapor phases.
package cubic

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/equilibrium"
)

//go:embed critical.toml
var criticalData []byte

// Critical holds the critical properties of a species.
type Critical struct {
	Tc    float64 // K
	Pc    float64 // bar
	Omega float64 // acentric factor
}

// Interaction is a binary interaction parameter between species I and J.
type Interaction struct {
	I, J string
	K    float64
}

// Parameters holds the equation of state parameters.
type Parameters struct {
	Species     map[string]Critical
	Interaction []Interaction
}

// ReadParameters reads parameters in TOML format from r.
func ReadParameters(r io.Reader) (*Parameters, error) {
	p := new(Parameters)
	if _, err := toml.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("cubic: reading parameters: %v", err)
	}
	for name, c := range p.Species {
		if !(c.Tc > 0) || !(c.Pc > 0) {
			return nil, fmt.Errorf("cubic: species %s: critical temperature and pressure must be positive", name)
		}
	}
	return p, nil
}

// DefaultParameters returns the parameters distributed with this package.
func DefaultParameters() (*Parameters, error) {
	return ReadParameters(bytes.NewReader(criticalData))
}

// Model is a cubic equation of state of the form
//
//	P = RT/(v-b) - a/((v+δ1·b)(v+δ2·b))
type Model struct {
	kind           equilibrium.ModelType
	delta1, delta2 float64
	omegaA, omegaB float64
	kappa          func(omega float64) float64
	params         *Parameters
}

// NewPengRobinson returns a Peng-Robinson phase model.
func NewPengRobinson(p *Parameters) *Model {
	return &Model{
		kind:   equilibrium.PengRobinson,
		delta1: 1 + math.Sqrt2,
		delta2: 1 - math.Sqrt2,
		omegaA: 0.45724,
		omegaB: 0.07780,
		kappa: func(w float64) float64 {
			return 0.37464 + 1.54226*w - 0.26992*w*w
		},
		params: p,
	}
}

// NewSRK returns a Soave-Redlich-Kwong phase model.
func NewSRK(p *Parameters) *Model {
	return &Model{
		kind:   equilibrium.SRK,
		delta1: 1,
		delta2: 0,
		omegaA: 0.42748,
		omegaB: 0.08664,
		kappa: func(w float64) float64 {
			return 0.480 + 1.574*w - 0.176*w*w
		},
		params: p,
	}
}

// Type returns the model type.
func (m *Model) Type() equilibrium.ModelType { return m.kind }

// NewProvider returns a fugacity provider for the given species.
// Species without critical properties have zero attraction and
// covolume parameters.
func (m *Model) NewProvider(species []*equilibrium.Species) (equilibrium.FugacityProvider, error) {
	ns := len(species)
	p := &provider{
		m:     m,
		crit:  make([]Critical, ns),
		known: make([]bool, ns),
		k:     make([][]float64, ns),
		n:     make([]float64, ns),
		y:     make([]float64, ns),
		ai:    make([]float64, ns),
		bi:    make([]float64, ns),
		sumA:  make([]float64, ns),
		lnPhi: make([]float64, ns),
		work:  make([]float64, ns),
		plus:  make([]float64, ns),
		minus: make([]float64, ns),
	}
	index := make(map[string]int, ns)
	for i, s := range species {
		index[s.Name] = i
		p.crit[i], p.known[i] = m.params.Species[s.Name]
		p.k[i] = make([]float64, ns)
	}
	for _, in := range m.params.Interaction {
		i, iok := index[in.I]
		j, jok := index[in.J]
		if !iok || !jok {
			continue
		}
		p.k[i][j], p.k[j][i] = in.K, in.K
	}
	return p, nil
}

type provider struct {
	m     *Model
	crit  []Critical
	known []bool
	k     [][]float64

	T, P float64
	n, y []float64

	ai, bi, sumA []float64
	lnPhi        []float64

	dln      [][]float64
	dlnValid bool

	work, plus, minus []float64
}

// Update calculates the fugacity coefficients at the given state.
func (p *provider) Update(T, P float64, moles []float64) error {
	if !(T > 0) || !(P > 0) {
		return fmt.Errorf("cubic: invalid state T=%g K, P=%g bar", T, P)
	}
	p.T, p.P = T, P
	copy(p.n, moles)
	p.dlnValid = false
	for i, c := range p.crit {
		if !p.known[i] {
			p.ai[i], p.bi[i] = 0, 0
			continue
		}
		Tr, Pr := T/c.Tc, P/c.Pc
		alpha := 1 + p.m.kappa(c.Omega)*(1-math.Sqrt(Tr))
		p.ai[i] = p.m.omegaA * alpha * alpha * Pr / (Tr * Tr)
		p.bi[i] = p.m.omegaB * Pr / Tr
	}
	return p.lnPhiAt(p.n, p.lnPhi)
}

// lnPhiAt calculates ln(φ) for composition n into dst.
func (p *provider) lnPhiAt(n, dst []float64) error {
	ntot := 0.
	for _, v := range n {
		ntot += v
	}
	if !(ntot > 0) {
		return fmt.Errorf("cubic: empty phase")
	}
	for i, v := range n {
		p.y[i] = v / ntot
	}
	var A, B float64
	for i := range p.y {
		s := 0.
		for j := range p.y {
			s += p.y[j] * math.Sqrt(p.ai[i]*p.ai[j]) * (1 - p.k[i][j])
		}
		p.sumA[i] = s
		A += p.y[i] * s
		B += p.y[i] * p.bi[i]
	}
	if B <= 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	Z, err := p.compressibility(A, B)
	if err != nil {
		return err
	}
	d1, d2 := p.m.delta1, p.m.delta2
	logTerm := math.Log((Z + d1*B) / (Z + d2*B))
	for i := range dst {
		v := p.bi[i]/B*(Z-1) - math.Log(Z-B)
		if A > 0 {
			v -= A / (B * (d1 - d2)) * (2*p.sumA[i]/A - p.bi[i]/B) * logTerm
		}
		dst[i] = v
	}
	return nil
}

// compressibility returns the largest root of the cubic equation of
// state in Z, which is the vapor root.
func (p *provider) compressibility(A, B float64) (float64, error) {
	u, w := p.m.delta1+p.m.delta2, p.m.delta1*p.m.delta2
	c2 := (u-1)*B - 1
	c1 := A + w*B*B - u*B - u*B*B
	c0 := -(A*B + w*B*B + w*B*B*B)

	// Newton's method from above the largest root converges to it
	// monotonically, because the cubic is convex there.
	z := 1 + math.Max(math.Abs(c2), math.Max(math.Abs(c1), math.Abs(c0)))
	for iter := 0; iter < 200; iter++ {
		f := ((z+c2)*z+c1)*z + c0
		df := (3*z+2*c2)*z + c1
		if df == 0 {
			break
		}
		dz := f / df
		z -= dz
		if math.Abs(dz) < 1.e-14*math.Abs(z) {
			if z <= B {
				return 0, fmt.Errorf("cubic: compressibility %g is not above B=%g", z, B)
			}
			return z, nil
		}
	}
	return 0, fmt.Errorf("cubic: compressibility did not converge (A=%g, B=%g)", A, B)
}

// LnPhi returns ln(φ) of species i.
func (p *provider) LnPhi(i int) (float64, error) {
	return p.lnPhi[i], nil
}

// DLnPhiDn returns ∂ln(φ_i)/∂n_j, calculated by finite differences.
func (p *provider) DLnPhiDn(i, j int) (float64, error) {
	if !p.dlnValid {
		if err := p.derivatives(); err != nil {
			return 0, err
		}
	}
	return p.dln[i][j], nil
}

func (p *provider) derivatives() error {
	ns := len(p.n)
	if p.dln == nil {
		p.dln = make([][]float64, ns)
		for i := range p.dln {
			p.dln[i] = make([]float64, ns)
		}
	}
	ntot := 0.
	for _, v := range p.n {
		ntot += v
	}
	h := 1.e-6 * ntot
	for j := 0; j < ns; j++ {
		copy(p.work, p.n)
		p.work[j] += h
		if err := p.lnPhiAt(p.work, p.plus); err != nil {
			return err
		}
		lo := h
		if p.n[j] > h {
			p.work[j] = p.n[j] - h
			lo = -h
		} else {
			p.work[j] = p.n[j]
			lo = 0
		}
		if err := p.lnPhiAt(p.work, p.minus); err != nil {
			return err
		}
		for i := 0; i < ns; i++ {
			p.dln[i][j] = (p.plus[i] - p.minus[i]) / (h - lo)
		}
	}
	p.dlnValid = true
	return nil
}
