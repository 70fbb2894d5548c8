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

package aqueous

import (
	"math"
	"strings"
	"testing"

	"github.com/spatialmodel/equilibrium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func species(t *testing.T, names ...string) []*equilibrium.Species {
	cat, err := equilibrium.DefaultCatalog()
	require.NoError(t, err)
	o := make([]*equilibrium.Species, len(names))
	for i, n := range names {
		s, ok := cat.Get(n)
		require.True(t, ok, n)
		o[i] = s
	}
	return o
}

func TestSaturationPressure(t *testing.T) {
	p, err := DefaultParameters()
	require.NoError(t, err)
	assert.InDelta(t, 0.03534, p.Antoine.SaturationPressure(300), 1.e-4)
	assert.InDelta(t, 1.013, p.Antoine.SaturationPressure(373.15), 0.03)
}

func TestHenryConstant(t *testing.T) {
	h := Henry{H: 9.1e4, VantHoff: 1300}
	assert.InDelta(t, h.H, h.Constant(equilibrium.TRef), 1.e-8)
	assert.Greater(t, h.Constant(350), h.H, "gases are less soluble when warmer")
}

func TestReadParameters(t *testing.T) {
	_, err := ReadParameters(strings.NewReader(`[Henry.N2]
H = 9.1e4`))
	assert.Error(t, err, "no solvent")

	_, err = ReadParameters(strings.NewReader(`Solvent = "H2O"
[Henry.N2]
H = -1`))
	assert.Error(t, err, "negative Henry's law constant")

	p, err := ReadParameters(strings.NewReader(`Solvent = "H2O"
[[Margules]]
I = "H2O"
J = "CO2"
A = 0.5`))
	require.NoError(t, err)
	require.Len(t, p.Margules, 1)
	assert.Equal(t, Margules{I: "H2O", J: "CO2", A: 0.5}, p.Margules[0])

	p, err = ReadParameters(strings.NewReader(`Solvent = "H2O"
[Henry.CO2]
H = 1670
VantHoff = 2400`))
	require.NoError(t, err, "integer values")
	assert.Equal(t, Henry{H: 1670, VantHoff: 2400}, p.Henry["CO2"])
}

func TestDefaultParameters(t *testing.T) {
	p, err := DefaultParameters()
	require.NoError(t, err)
	assert.Equal(t, "H2O", p.Solvent)
	assert.Equal(t, Henry{H: 1670, VantHoff: 2400}, p.Henry["CO2"])
	assert.Equal(t, Henry{H: 9.1e4, VantHoff: 1300}, p.Henry["N2"])
	assert.Empty(t, p.Margules)
}

func TestFugacityCoefficients(t *testing.T) {
	p, err := DefaultParameters()
	require.NoError(t, err)
	sp := species(t, "H2O", "N2", "Ar", "C3H8")
	prov, err := New(p).NewProvider(sp)
	require.NoError(t, err)

	const T, P = 300., 2.
	require.NoError(t, prov.Update(T, P, []float64{1, 1.e-5, 1.e-6, 1.e-9}))
	lnPhi := func(i int) float64 {
		v, err := prov.LnPhi(i)
		require.NoError(t, err)
		return v
	}
	assert.InDelta(t, math.Log(p.Antoine.SaturationPressure(T)/P), lnPhi(0), 1.e-12)
	assert.InDelta(t, math.Log(p.Henry["N2"].Constant(T)/P), lnPhi(1), 1.e-12)
	assert.InDelta(t, math.Log(p.Henry["Ar"].Constant(T)/P), lnPhi(2), 1.e-12)
	assert.InDelta(t, math.Log(1.e10), lnPhi(3), 1.e-12, "propane does not dissolve")

	assert.Error(t, prov.Update(T, P, []float64{0, 0, 0, 0}))
	assert.Error(t, prov.Update(-1, P, []float64{1, 0, 0, 0}))
}

func margulesModel(t *testing.T) *Model {
	t.Helper()
	p, err := DefaultParameters()
	require.NoError(t, err)
	p.Margules = []Margules{
		{I: "H2O", J: "CO2", A: 1.2},
		{I: "H2O", J: "N2", A: 0.8},
		{I: "CO2", J: "N2", A: -0.3},
	}
	return New(p)
}

func TestDerivatives(t *testing.T) {
	sp := species(t, "H2O", "CO2", "N2", "C3H8")
	prov, err := margulesModel(t).NewProvider(sp)
	require.NoError(t, err)

	const T, P = 320., 1.
	n := []float64{0.7, 0.2, 0.1, 0.05}
	require.NoError(t, prov.Update(T, P, n))
	analytic := make([][]float64, len(n))
	for i := range n {
		analytic[i] = make([]float64, len(n))
		for j := range n {
			analytic[i][j], err = prov.DLnPhiDn(i, j)
			require.NoError(t, err)
		}
	}
	for j := range n {
		h := 1.e-6 * n[j]
		work := append([]float64(nil), n...)
		work[j] = n[j] + h
		require.NoError(t, prov.Update(T, P, work))
		plus := make([]float64, len(n))
		for i := range n {
			plus[i], _ = prov.LnPhi(i)
		}
		work[j] = n[j] - h
		require.NoError(t, prov.Update(T, P, work))
		for i := range n {
			minus, _ := prov.LnPhi(i)
			fd := (plus[i] - minus) / (2 * h)
			assert.InDelta(t, fd, analytic[i][j], 1.e-6, "∂lnφ%d/∂n%d", i, j)
		}
	}
}

func TestGibbsDuhem(t *testing.T) {
	sp := species(t, "H2O", "CO2", "N2")
	prov, err := margulesModel(t).NewProvider(sp)
	require.NoError(t, err)
	n := []float64{0.6, 0.3, 0.1}
	require.NoError(t, prov.Update(300, 1, n))
	for j := range n {
		sum := 0.
		for i := range n {
			d, err := prov.DLnPhiDn(i, j)
			require.NoError(t, err)
			sum += n[i] * d
		}
		assert.InDelta(t, 0, sum, 1.e-12, "species %d", j)
	}
}

func TestVaporLiquidEquilibrium(t *testing.T) {
	cat, err := equilibrium.DefaultCatalog()
	require.NoError(t, err)
	p, err := DefaultParameters()
	require.NoError(t, err)

	const T = 300.
	feed := &equilibrium.Feed{
		Composition: map[string]float64{"H2O": 1, "N2": 1},
		Temperature: T,
		Pressure:    1,
	}
	cfg := equilibrium.DefaultConfig()
	cfg.EnergyMode = equilibrium.Isothermal
	cfg.UseAllSpecies = false
	cfg.Damping = 1
	cfg.MinIterations = 5
	r, err := equilibrium.Equilibrate(cat, feed, cfg, equilibrium.IdealGasPhase{}, New(p))
	require.NoError(t, err)
	require.True(t, r.Converged, r.Status.String())
	require.Len(t, r.Phases, 2)

	gas, liquid := r.Phases[0], r.Phases[1]
	y := gas.Composition["H2O"] / gas.Moles
	assert.InEpsilon(t, p.Antoine.SaturationPressure(T), y, 0.01, "water vapor fraction")
	assert.Greater(t, liquid.Composition["H2O"], 0.9)

	// Dissolved nitrogen follows Henry's law.
	x := liquid.Composition["N2"] / liquid.Moles
	yN2 := gas.Composition["N2"] / gas.Moles
	assert.InEpsilon(t, yN2/p.Henry["N2"].Constant(T), x, 0.01)

	for _, name := range []string{"H2O", "N2"} {
		assert.InDelta(t, feed.Composition[name], r.Composition[name], 1.e-8, name)
	}
}
