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
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

var combustionProducts = []string{"CO2", "H2O", "CO", "H2", "OH", "H", "O", "NO"}

func airFeed(T float64) *Feed {
	return &Feed{
		Composition: map[string]float64{"CH4": 1, "O2": 2, "N2": 7.52},
		Temperature: T,
		Pressure:    1,
	}
}

func combustionConfig(mode EnergyMode) *Config {
	cfg := DefaultConfig()
	cfg.EnergyMode = mode
	cfg.UseAllSpecies = false
	cfg.Products = combustionProducts
	return cfg
}

// checkBalance checks that the outlet contains the same atoms as the feed.
func checkBalance(t *testing.T, cat *Catalog, feed map[string]float64, r *Result) {
	t.Helper()
	in := cat.ElementTotals(feed)
	out := cat.ElementTotals(r.Composition)
	for e := range in {
		if math.Abs(in[e]-out[e]) > 1.e-8*math.Max(in[e], 1) {
			t.Errorf("element %v: feed has %g mol, outlet has %g mol", Element(e), in[e], out[e])
		}
	}
	for name, v := range r.Composition {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("species %s has invalid amount %g", name, v)
		}
	}
}

func TestAdiabaticCombustion(t *testing.T) {
	cat := testCatalog(t)
	feed := airFeed(TRef)
	r, err := Equilibrate(cat, feed, combustionConfig(Adiabatic))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Status != Converged {
		t.Fatalf("run did not converge: status %v after %d iterations", r.Status, r.Iterations)
	}
	const testTolerance = 0.02
	if different(r.Temperature, 2267.7, testTolerance) {
		t.Errorf("temperature: have %g, want about 2267.7 K", r.Temperature)
	}
	want := map[string]float64{"CO2": 0.877, "H2O": 1.936, "N2": 7.509}
	for name, w := range want {
		if different(r.Composition[name], w, testTolerance) {
			t.Errorf("%s: have %g, want %g", name, r.Composition[name], w)
		}
	}
	if r.Composition["CH4"] > 1.e-8 {
		t.Errorf("CH4 should be consumed but %g mol remain", r.Composition["CH4"])
	}
	if different(r.ReactionEnthalpy, -746434.6, 0.01) {
		t.Errorf("reaction enthalpy: have %g, want about -746435 J", r.ReactionEnthalpy)
	}
	if different(r.TemperatureDrift, r.Temperature-TRef, 1.e-8) {
		t.Errorf("temperature drift %g does not match temperature change %g", r.TemperatureDrift, r.Temperature-TRef)
	}
	if r.BalanceError > 1.e-8 {
		t.Errorf("balance error %g", r.BalanceError)
	}
	if len(r.History) != r.Iterations {
		t.Errorf("history has %d entries for %d iterations", len(r.History), r.Iterations)
	}
	checkBalance(t, cat, feed.Composition, r)
}

func TestMethaneOxygenCombustion(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	feed := &Feed{
		Composition: map[string]float64{"CH4": 1, "O2": 2},
		Temperature: TRef,
		Pressure:    1,
	}
	r, err := Equilibrate(cat, feed, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Status != Converged {
		t.Fatalf("run did not converge: status %v after %d iterations", r.Status, r.Iterations)
	}
	if r.Temperature < 2800 || r.Temperature > 3300 {
		t.Errorf("temperature: have %g K, want about 3050 K", r.Temperature)
	}
	if r.ReactionEnthalpy >= 0 {
		t.Errorf("combustion should release heat but ΔH = %g J", r.ReactionEnthalpy)
	}
	if r.BalanceError > 1.e-8 {
		t.Errorf("balance error %g", r.BalanceError)
	}
	in := cat.ElementTotals(feed.Composition)
	out := cat.ElementTotals(r.Composition)
	for _, e := range []Element{C, H, O} {
		if different(out[e], in[e], 1.e-8) {
			t.Errorf("element %v: feed has %g mol, outlet has %g mol", e, in[e], out[e])
		}
	}
	checkBalance(t, cat, feed.Composition, r)
}

func TestIsothermalCombustion(t *testing.T) {
	cat := testCatalog(t)
	const T = 2267.72
	feed := airFeed(T)
	r, err := Equilibrate(cat, feed, combustionConfig(Isothermal))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged {
		t.Fatalf("run did not converge: status %v", r.Status)
	}
	if r.Temperature != T {
		t.Errorf("temperature changed from %g to %g K", T, r.Temperature)
	}
	if r.ReactionEnthalpy != 0 || r.TemperatureDrift != 0 {
		t.Errorf("isothermal run should not track energy: ΔH = %g, ΔT = %g", r.ReactionEnthalpy, r.TemperatureDrift)
	}
	want := map[string]float64{"CO2": 0.8773, "H2O": 1.936, "CO": 0.1227, "O2": 0.06103, "N2": 7.509}
	for name, w := range want {
		if different(r.Composition[name], w, 0.02) {
			t.Errorf("%s: have %g, want %g", name, r.Composition[name], w)
		}
	}
	checkBalance(t, cat, feed.Composition, r)
}

func TestIsothermalLowTemperature(t *testing.T) {
	cat := testCatalog(t)
	r, err := Equilibrate(cat, airFeed(1000), combustionConfig(Isothermal))
	if err != nil {
		t.Fatal(err)
	}
	if different(r.Composition["CO2"], 1, 1.e-4) {
		t.Errorf("CO2: have %g, want 1", r.Composition["CO2"])
	}
	if different(r.Composition["H2O"], 2, 1.e-4) {
		t.Errorf("H2O: have %g, want 2", r.Composition["H2O"])
	}
	if r.Composition["O2"] > 1.e-5 {
		t.Errorf("O2: have %g, want nearly zero", r.Composition["O2"])
	}
}

func TestEquilibriumIsStationary(t *testing.T) {
	cat := testCatalog(t)
	const T = 1500
	r, err := Equilibrate(cat, airFeed(T), combustionConfig(Isothermal))
	if err != nil {
		t.Fatal(err)
	}
	feed := &Feed{Composition: r.Composition, Temperature: T, Pressure: 1}
	cfg := combustionConfig(Isothermal)
	cfg.MinIterations = 1
	r2, err := Equilibrate(cat, feed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !r2.Converged || r2.Iterations > 10 {
		t.Errorf("restarting from equilibrium took %d iterations (status %v)", r2.Iterations, r2.Status)
	}
	for _, name := range []string{"CO2", "H2O", "CO", "O2", "N2"} {
		if different(r2.Composition[name], r.Composition[name], 1.e-4) {
			t.Errorf("%s: changed from %g to %g", name, r.Composition[name], r2.Composition[name])
		}
	}
}

func TestInertPassThrough(t *testing.T) {
	cat := testCatalog(t)
	feed := airFeed(1500)
	feed.Composition["Ar"] = 0.5
	feed.Composition["Soot"] = 0.3
	feed.Composition["SO2"] = 0
	cfg := DefaultConfig()
	cfg.EnergyMode = Isothermal
	cfg.Inert = []string{"Ar", "N2"}

	s, err := NewSolver(cat, feed, cfg, []PhaseModel{IdealGasPhase{}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Init(); err != nil {
		t.Fatal(err)
	}
	st := s.State()
	for _, name := range []string{"Ar", "N2", "Soot", "SO2"} {
		if st.SpeciesIndex(name) >= 0 {
			t.Errorf("%s should not react", name)
		}
		if _, ok := st.Inert[name]; !ok {
			t.Errorf("%s is missing from the inert species", name)
		}
	}
	for _, name := range []string{"NO", "HCN", "NH3"} {
		if st.SpeciesIndex(name) >= 0 {
			t.Errorf("%s contains nitrogen, which is inert", name)
		}
	}
	for _, name := range []string{"CO2", "H2O", "C2H6"} {
		i := st.SpeciesIndex(name)
		if i < 0 {
			t.Errorf("%s should be a possible product", name)
			continue
		}
		if st.Moles[0][i] != TraceMoles {
			t.Errorf("%s: initial amount %g, want %g", name, st.Moles[0][i], TraceMoles)
		}
	}
	if err = s.Run(); err != nil {
		t.Fatal(err)
	}
	r := s.Result()
	want := map[string]float64{"Ar": 0.5, "N2": 7.52, "Soot": 0.3, "SO2": 0}
	for name, w := range want {
		if r.Composition[name] != w {
			t.Errorf("%s: have %g, want %g", name, r.Composition[name], w)
		}
	}
	checkBalance(t, cat, feed.Composition, r)
}

func TestNoReaction(t *testing.T) {
	cat := testCatalog(t)
	feed := airFeed(TRef)
	cfg := DefaultConfig()
	cfg.Inert = []string{"CH4", "O2", "N2"}
	r, err := Equilibrate(cat, feed, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged {
		t.Errorf("status %v", r.Status)
	}
	if r.Temperature != TRef || r.ReactionEnthalpy != 0 {
		t.Errorf("T = %g K, ΔH = %g J; want %g K and 0 J", r.Temperature, r.ReactionEnthalpy, TRef)
	}
	for name, v := range feed.Composition {
		if r.Composition[name] != v {
			t.Errorf("%s: have %g, want %g", name, r.Composition[name], v)
		}
	}

	r, err = Equilibrate(cat, &Feed{Composition: map[string]float64{"N2": 1}, Temperature: TRef, Pressure: 1}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || r.Temperature != TRef || r.ReactionEnthalpy != 0 {
		t.Errorf("pure nitrogen: status %v, T = %g K, ΔH = %g J", r.Status, r.Temperature, r.ReactionEnthalpy)
	}
	if different(r.Composition["N2"], 1, 1.e-10) {
		t.Errorf("N2: have %g, want 1", r.Composition["N2"])
	}
}

func TestRunaway(t *testing.T) {
	cat := testCatalog(t)
	cfg := combustionConfig(Adiabatic)
	cfg.Damping = 1
	r, err := Equilibrate(cat, airFeed(TRef), cfg)
	var re *RunawayError
	if !errors.As(err, &re) {
		t.Fatalf("want *RunawayError, have %v", err)
	}
	if math.Abs(re.Step) <= cfg.MaxTemperatureStep {
		t.Errorf("temperature step %g is within the limit", re.Step)
	}
	if r == nil || r.Status != Failed || r.Converged {
		t.Errorf("failed run should have a result with status %v", Failed)
	}
	if !strings.Contains(err.Error(), "damping") {
		t.Errorf("error message should suggest a smaller damping factor: %v", err)
	}
}

func TestNotConverged(t *testing.T) {
	cat := testCatalog(t)
	cfg := combustionConfig(Adiabatic)
	cfg.MaxIterations = 10
	cfg.MinIterations = 5
	r, err := Equilibrate(cat, airFeed(TRef), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r.Converged || r.Status != MaxIterationsReached || r.Iterations != 10 {
		t.Errorf("status %v after %d iterations", r.Status, r.Iterations)
	}

	cfg.FailOnNonConvergence = true
	r, err = Equilibrate(cat, airFeed(TRef), cfg)
	if !errors.Is(err, ErrNotConverged) {
		t.Errorf("want ErrNotConverged, have %v", err)
	}
	if r == nil || r.Status != MaxIterationsReached {
		t.Errorf("non-converged result is missing")
	}
}

func TestConfigErrors(t *testing.T) {
	cat := testCatalog(t)
	for name, f := range map[string]func(c *Config){
		"damping":        func(c *Config) { c.Damping = 0 },
		"damping>1":      func(c *Config) { c.Damping = 1.5 },
		"tolerance":      func(c *Config) { c.Tolerance = -1 },
		"min iterations": func(c *Config) { c.MinIterations = c.MaxIterations + 1 },
		"energy mode":    func(c *Config) { c.EnergyMode = EnergyMode(7) },
		"products":       func(c *Config) { c.Products = []string{"Unobtainium"} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			f(cfg)
			_, err := Equilibrate(cat, airFeed(TRef), cfg)
			if !errors.Is(err, ErrConfig) {
				t.Errorf("want ErrConfig, have %v", err)
			}
		})
	}

	feed := airFeed(-1)
	if _, err := Equilibrate(cat, feed, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("negative temperature: want ErrConfig, have %v", err)
	}
	feed = &Feed{Composition: map[string]float64{"N2": 0}, Temperature: TRef, Pressure: 1}
	if _, err := Equilibrate(cat, feed, nil); !errors.Is(err, ErrNoSpecies) {
		t.Errorf("empty feed: want ErrNoSpecies, have %v", err)
	}
	if _, err := ParseEnergyMode("boiling"); !errors.Is(err, ErrConfig) {
		t.Errorf("energy mode: want ErrConfig, have %v", err)
	}
	if _, err := ParseModelType("plasma"); !errors.Is(err, ErrConfig) {
		t.Errorf("model type: want ErrConfig, have %v", err)
	}
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(strings.NewReader(`
EnergyMode = "isothermal"
Damping = 0.1
UseAllSpecies = false
Products = ["CO", "H2"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EnergyMode != Isothermal || cfg.Damping != 0.1 || cfg.UseAllSpecies {
		t.Errorf("settings not read: %+v", cfg)
	}
	if len(cfg.Products) != 2 || cfg.Products[1] != "H2" {
		t.Errorf("products: %v", cfg.Products)
	}
	if cfg.MaxIterations != DefaultConfig().MaxIterations {
		t.Errorf("missing settings should keep their defaults")
	}
	if _, err = ReadConfig(strings.NewReader(`EnergyMode = "boiling"`)); !errors.Is(err, ErrConfig) {
		t.Errorf("want ErrConfig, have %v", err)
	}

	cfg, err = ReadConfig(strings.NewReader("Damping = 1\nMaxTemperatureStep = 500\n"))
	if err != nil {
		t.Fatalf("integer values: %v", err)
	}
	if cfg.Damping != 1 || cfg.MaxTemperatureStep != 500 {
		t.Errorf("integer values not read: Damping = %g, MaxTemperatureStep = %g", cfg.Damping, cfg.MaxTemperatureStep)
	}
}

func TestParseModelType(t *testing.T) {
	for s, want := range map[string]ModelType{
		"IdealGas":      IdealGas,
		"peng-robinson": PengRobinson,
		"PR":            PengRobinson,
		"srk":           SRK,
		" Aqueous ":     Aqueous,
	} {
		m, err := ParseModelType(s)
		if err != nil {
			t.Errorf("%q: %v", s, err)
			continue
		}
		if m != want {
			t.Errorf("%q: have %v, want %v", s, m, want)
		}
		if m2, _ := ParseModelType(m.String()); m2 != m {
			t.Errorf("%v does not round trip", m)
		}
	}
	if Converged.String() != "CONVERGED" || MaxIterationsReached.String() != "MAX_ITERATIONS_REACHED" {
		t.Errorf("status names: %v, %v", Converged, MaxIterationsReached)
	}
}

func TestJacobian(t *testing.T) {
	cat := testCatalog(t)
	s, err := NewSolver(cat, airFeed(1500), combustionConfig(Isothermal), []PhaseModel{IdealGasPhase{}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Init(); err != nil {
		t.Fatal(err)
	}
	st := s.State()
	for i := range st.Moles[0] {
		st.Moles[0][i] = 0.1 * float64(i+1)
	}
	for k := range st.Lambda {
		st.Lambda[k] = -1.e5 * float64(k+1)
	}
	jac := st.Jacobian()
	base := st.Residuals()
	RT := R * st.Temperature
	ns := len(st.Species)
	for j := 0; j < ns; j++ {
		n0 := st.Moles[0][j]
		h := 1.e-6 * n0
		st.Moles[0][j] = n0 + h
		plus := st.Residuals()
		st.Moles[0][j] = n0 - h
		minus := st.Residuals()
		st.Moles[0][j] = n0
		for i := range base {
			fd := (plus[i] - minus[i]) / (2 * h)
			an := jac.At(i, j)
			if math.Abs(fd-an) > 1.e-5*math.Max(math.Abs(an), RT) {
				t.Errorf("∂r%d/∂n%d: analytic %g, numerical %g", i, j, an, fd)
			}
		}
	}
	for k := range st.Lambda {
		l0 := st.Lambda[k]
		st.Lambda[k] = l0 + 1
		plus := st.Residuals()
		st.Lambda[k] = l0
		for i := range base {
			fd := plus[i] - base[i]
			an := jac.At(i, ns+k)
			if math.Abs(fd-an) > 1.e-6*math.Max(1, math.Abs(base[i])) {
				t.Errorf("∂r%d/∂λ%d: analytic %g, numerical %g", i, k, an, fd)
			}
		}
	}
}

func TestLinearSolve(t *testing.T) {
	x, pinv, err := linearSolve(mat.NewDense(2, 2, []float64{2, 0, 0, 4}), []float64{2, 4}, 1.e14, false)
	if err != nil || pinv {
		t.Fatalf("regular system: pinv %v, err %v", pinv, err)
	}
	if different(x[0], 1, 1.e-12) || different(x[1], 1, 1.e-12) {
		t.Errorf("regular system: x = %v", x)
	}

	singular := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	if _, _, err = linearSolve(singular, []float64{2, 2}, 1.e14, false); err != errIllConditioned {
		t.Errorf("singular system without fallback: have %v", err)
	}
	x, pinv, err = linearSolve(singular, []float64{2, 2}, 1.e14, true)
	if err != nil || !pinv {
		t.Fatalf("singular system: pinv %v, err %v", pinv, err)
	}
	if different(x[0], 1, 1.e-8) || different(x[1], 1, 1.e-8) {
		t.Errorf("minimum norm solution: x = %v, want [1 1]", x)
	}
}

// raoultPhase is a condensed phase with constant fugacity coefficients.
type raoultPhase struct {
	lnPhi map[string]float64
	fail  bool
}

func (raoultPhase) Type() ModelType { return Aqueous }

func (m raoultPhase) NewProvider(species []*Species) (FugacityProvider, error) {
	p := &raoultProvider{fail: m.fail}
	for _, s := range species {
		p.lnPhi = append(p.lnPhi, m.lnPhi[s.Name])
	}
	return p, nil
}

type raoultProvider struct {
	lnPhi []float64
	fail  bool
}

func (p *raoultProvider) Update(_, _ float64, _ []float64) error {
	if p.fail {
		return errors.New("no data")
	}
	return nil
}
func (p *raoultProvider) LnPhi(i int) (float64, error)       { return p.lnPhi[i], nil }
func (p *raoultProvider) DLnPhiDn(_, _ int) (float64, error) { return 0, nil }

func TestTwoPhase(t *testing.T) {
	cat := testCatalog(t)
	const psat = 0.03534 // bar, water at 300 K
	liquid := raoultPhase{lnPhi: map[string]float64{
		"H2O": math.Log(psat),
		"N2":  math.Log(9.1e4),
	}}
	feed := &Feed{Composition: map[string]float64{"H2O": 1, "N2": 1}, Temperature: 300, Pressure: 1}
	cfg := DefaultConfig()
	cfg.EnergyMode = Isothermal
	cfg.UseAllSpecies = false
	cfg.Damping = 1
	cfg.MinIterations = 5
	r, err := Equilibrate(cat, feed, cfg, IdealGasPhase{}, liquid)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Converged || len(r.Phases) != 2 {
		t.Fatalf("status %v with %d phases", r.Status, len(r.Phases))
	}
	gas := r.Phases[0]
	if gas.Model != IdealGas || r.Phases[1].Model != Aqueous {
		t.Errorf("phase models: %v, %v", gas.Model, r.Phases[1].Model)
	}
	y := gas.Composition["H2O"] / gas.Moles
	if different(y, psat, 0.01) {
		t.Errorf("water vapor fraction: have %g, want %g", y, psat)
	}
	if r.Phases[1].Composition["H2O"] < 0.9 {
		t.Errorf("most of the water should condense: %g mol", r.Phases[1].Composition["H2O"])
	}
	checkBalance(t, cat, feed.Composition, r)
}

func TestFailingProviderIsIdeal(t *testing.T) {
	cat := testCatalog(t)
	cfg := combustionConfig(Isothermal)
	ideal, err := Equilibrate(cat, airFeed(1500), cfg)
	if err != nil {
		t.Fatal(err)
	}
	broken, err := Equilibrate(cat, airFeed(1500), cfg, raoultPhase{
		lnPhi: map[string]float64{"CO2": 5}, fail: true})
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range ideal.Composition {
		if different(broken.Composition[name], v, 1.e-10) {
			t.Errorf("%s: have %g, want %g", name, broken.Composition[name], v)
		}
	}
}

type countObserver struct {
	iterations, done int
}

func (o *countObserver) Iteration(*State) { o.iterations++ }
func (o *countObserver) Done(*State)      { o.done++ }

func TestObserver(t *testing.T) {
	cat := testCatalog(t)
	o := new(countObserver)
	s, err := NewSolver(cat, airFeed(1500), combustionConfig(Isothermal), []PhaseModel{IdealGasPhase{}}, o)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Init(); err != nil {
		t.Fatal(err)
	}
	if s.State().Status != Initialized {
		t.Errorf("status after Init: %v", s.State().Status)
	}
	if err = s.Run(); err != nil {
		t.Fatal(err)
	}
	if o.iterations != s.State().Iteration || o.done != 1 {
		t.Errorf("observer saw %d iterations and %d completions; run had %d iterations",
			o.iterations, o.done, s.State().Iteration)
	}

	// The solver can be reused.
	if err = s.Init(); err != nil {
		t.Fatal(err)
	}
	if s.State().Iteration != 0 {
		t.Errorf("Init should start a fresh run")
	}
}

func TestRunBeforeInit(t *testing.T) {
	s, err := NewSolver(testCatalog(t), airFeed(TRef), nil, []PhaseModel{IdealGasPhase{}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Run(); err == nil {
		t.Error("Run before Init should fail")
	}
	if s.Result() != nil {
		t.Error("there is no result before Init")
	}
}
