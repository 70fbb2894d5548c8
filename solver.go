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
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Status is the status of a run.
type Status int

// Run statuses.
const (
	Initialized Status = iota
	Iterating
	Converged
	MaxIterationsReached
	Failed
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case Iterating:
		return "ITERATING"
	case Converged:
		return "CONVERGED"
	case MaxIterationsReached:
		return "MAX_ITERATIONS_REACHED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// State holds the working state of a single run. It is created by
// Solver.Init and belongs to that run only.
type State struct {
	Temperature float64 // K
	Pressure    float64 // bar

	Iteration int
	Status    Status

	// Done is set by a RunFunc to end the run.
	Done bool

	ResidualNorm float64 // Euclidean norm of the last residual vector
	StepNorm     float64 // nondimensional norm of the last Newton step

	ReactionEnthalpy float64 // J, cumulative
	TemperatureDrift float64 // K, cumulative
	BalanceError     float64 // largest relative element balance error

	// Species are the reacting species.
	Species []*Species

	// Elements are the active, linearly independent elements, and
	// Targets holds the moles of atoms of each of them in the feed.
	Elements []Element
	Targets  []float64

	// Moles holds the amount of each reacting species in each phase.
	Moles [][]float64

	// Lambda holds the Lagrange multiplier of each element [J/mol].
	Lambda []float64

	// Inert holds the species that pass through without reacting.
	Inert map[string]float64

	// History holds the step norm at each iteration.
	History []float64

	cfg        *Config
	log        logrus.FieldLogger
	coef       [][]float64 // [species][element]
	inertTotal float64
	inertKnown []*Species // inert species with thermodynamic data
	inertMoles []float64
	providers  []*safeProvider
	phaseTypes []ModelType

	residual []float64
	jac      *mat.Dense
	step     []float64
	rt       float64 // RT at the start of the iteration

	gibbs  []float64
	gibbsT float64

	hPrev    float64
	reduced  bool
	usedPinv bool
}

// size returns the number of Newton-Raphson variables.
func (s *State) size() int {
	return len(s.Species)*len(s.Moles) + len(s.Elements)
}

// NumPhases returns the number of phases.
func (s *State) NumPhases() int { return len(s.Moles) }

// SpeciesIndex returns the index of the named reacting species, or -1.
func (s *State) SpeciesIndex(name string) int {
	for i, sp := range s.Species {
		if sp.Name == name {
			return i
		}
	}
	return -1
}

// TotalMoles returns the amount of reacting species i summed over phases.
func (s *State) TotalMoles(i int) float64 {
	t := 0.
	for _, n := range s.Moles {
		t += n[i]
	}
	return t
}

func (s *State) reactingTotal() float64 {
	t := 0.
	for _, n := range s.Moles {
		t += floats.Sum(n)
	}
	return t
}

func (s *State) updateProviders() {
	for p, prov := range s.providers {
		prov.update(s.Temperature, s.Pressure, s.Moles[p])
	}
}

// PinvUsed reports whether any iteration so far needed the
// pseudo-inverse fallback.
func (s *State) PinvUsed() bool { return s.usedPinv }

// StateManipulator is a function that operates on the state of a run.
type StateManipulator func(s *State) error

// Solver calculates chemical equilibrium. InitFuncs are run once by Init
// and RunFuncs are run repeatedly by Run until the state is Done. A
// Solver can be reused sequentially, because Init creates a fresh State,
// but it must not be used by more than one goroutine at a time.
type Solver struct {
	InitFuncs []StateManipulator
	RunFuncs  []StateManipulator

	state *State
}

// NewSolver returns a solver that equilibrates feed using the species in
// cat, with one phase for each of the given phase models. The first phase
// receives the feed. The observer may be nil.
func NewSolver(cat *Catalog, feed *Feed, cfg *Config, phases []PhaseModel, o Observer) (*Solver, error) {
	if cat == nil {
		return nil, fmt.Errorf("equilibrium: %w: no species catalog", ErrConfig)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("equilibrium: %w: at least one phase is required", ErrConfig)
	}
	for i, p := range phases {
		if p == nil {
			return nil, fmt.Errorf("equilibrium: %w: phase %d has no model", ErrConfig, i)
		}
	}
	return &Solver{
		InitFuncs: []StateManipulator{
			SetComposition(cat, feed, cfg),
			SeedPhases(phases),
		},
		RunFuncs: []StateManipulator{
			NewtonStep(),
			EnergyBalance(),
			DampedUpdate(),
			MassBalanceCheck(),
			ConvergenceCheck(),
			Observe(o),
		},
	}, nil
}

// Init prepares a new run.
func (s *Solver) Init() error {
	s.state = &State{log: Log}
	for _, f := range s.InitFuncs {
		if err := f(s.state); err != nil {
			s.state.Status = Failed
			return err
		}
	}
	s.state.Status = Initialized
	return nil
}

// Run iterates until a RunFunc marks the state as done or
// returns an error.
func (s *Solver) Run() error {
	if s.state == nil {
		return fmt.Errorf("equilibrium: Run called before Init")
	}
	for !s.state.Done {
		for _, f := range s.RunFuncs {
			if err := f(s.state); err != nil {
				if !s.state.Done {
					s.state.Status = Failed
					s.state.Done = true
				}
				return err
			}
		}
	}
	return nil
}

// State returns the state of the current run.
func (s *Solver) State() *State { return s.state }

// Result returns the outcome of the current run.
func (s *Solver) Result() *Result {
	if s.state == nil {
		return nil
	}
	return s.state.result()
}

// Equilibrate calculates the equilibrium of feed. If no phase models are
// given, a single ideal gas phase is used. The returned result is non-nil
// whenever the run got past initialization, even if err is not nil.
func Equilibrate(cat *Catalog, feed *Feed, cfg *Config, phases ...PhaseModel) (*Result, error) {
	if len(phases) == 0 {
		phases = []PhaseModel{IdealGasPhase{}}
	}
	s, err := NewSolver(cat, feed, cfg, phases, nil)
	if err != nil {
		return nil, err
	}
	if err = s.Init(); err != nil {
		return nil, err
	}
	err = s.Run()
	return s.Result(), err
}

// NewtonStep returns a function that calculates the Newton-Raphson step
// at the current state. If the system is too poorly conditioned for a
// direct solve, linearly dependent element constraints are removed; if
// that has already been done, a pseudo-inverse is used instead.
func NewtonStep() StateManipulator {
	return func(s *State) error {
		s.Iteration++
		s.Status = Iterating
		s.rt = R * s.Temperature
		for attempt := 0; ; attempt++ {
			if s.size() == 0 {
				s.step = s.step[:0]
				s.ResidualNorm = 0
				return nil
			}
			s.updateProviders()
			s.residual = s.residuals(s.residual)
			s.jac = s.jacobian(s.jac)
			if s.Iteration > 1 {
				s.pinFloorSpecies()
			}
			s.ResidualNorm = floats.Norm(s.residual, 2)
			rhs := make([]float64, len(s.residual))
			floats.ScaleTo(rhs, -1, s.residual)

			x, pinv, err := linearSolve(s.jac, rhs, s.cfg.ConditionLimit, s.reduced)
			if errors.Is(err, errIllConditioned) && attempt == 0 {
				s.reduced = true
				if s.reduceConstraints() {
					s.log.WithFields(logrus.Fields{"iteration": s.Iteration, "elements": s.Elements}).
						Debug("equilibrium: removed dependent element constraints")
				}
				continue
			}
			if err != nil {
				return fmt.Errorf("equilibrium: iteration %d: %w", s.Iteration, err)
			}
			if pinv {
				s.usedPinv = true
			}
			s.step = x
			return nil
		}
	}
}

// reduceConstraints removes linearly dependent element constraints,
// reporting whether any were removed.
func (s *State) reduceConstraints() bool {
	a := CoefficientMatrix(s.Elements, s.Species)
	keep := RemoveRedundantConstraints(a, s.Elements)
	if len(keep) == len(s.Elements) {
		return false
	}
	s.setElements(keep, s.Targets, s.Elements)
	return true
}

// setElements sets the active elements to keep, selecting the matching
// targets and multipliers from the previous element list.
func (s *State) setElements(keep []Element, targets []float64, prev []Element) {
	newTargets := make([]float64, len(keep))
	newLambda := make([]float64, len(keep))
	for k, e := range keep {
		for j, pe := range prev {
			if pe == e {
				newTargets[k] = targets[j]
				if j < len(s.Lambda) {
					newLambda[k] = s.Lambda[j]
				}
			}
		}
	}
	s.Elements = keep
	s.Targets = newTargets
	s.Lambda = newLambda
	s.coef = make([][]float64, len(s.Species))
	for i, sp := range s.Species {
		s.coef[i] = make([]float64, len(keep))
		for k, e := range keep {
			s.coef[i][k] = sp.Elements[e]
		}
	}
}

// DampedUpdate returns a function that applies the last Newton-Raphson
// step. The step length is the configured damping factor, shortened if
// needed so that no mole amount decreases by more than 99% and no mole
// amount changes by more than Damping times the total moles. The
// multipliers are moved by LambdaDamping times the same relative step
// length. Mole amounts are kept at or above MinMoles.
func DampedUpdate() StateManipulator {
	return func(s *State) error {
		ns, np := len(s.Species), len(s.Moles)
		if len(s.step) == 0 {
			s.StepNorm = 0
			return nil
		}
		damping := s.cfg.Damping
		ntot := math.Max(s.reactingTotal(), MinMoles)
		dn := s.step[:ns*np]
		dl := s.step[ns*np:]

		alpha := damping
		maxStep := 0.
		for p, n := range s.Moles {
			for i := range n {
				d := dn[p*ns+i]
				if d < 0 {
					if lim := 0.99 * n[i] / -d; lim < alpha {
						alpha = lim
					}
				}
				maxStep = math.Max(maxStep, math.Abs(d))
			}
		}
		if maxStep > 0 && alpha*maxStep > damping*ntot {
			alpha = damping * ntot / maxStep
		}

		for p, n := range s.Moles {
			for i := range n {
				n[i] = math.Max(n[i]+alpha*dn[p*ns+i], MinMoles)
			}
		}
		lscale := s.cfg.LambdaDamping * alpha / damping
		for k := range s.Lambda {
			s.Lambda[k] += lscale * dl[k]
		}

		var sum float64
		for _, d := range dn {
			sum += (d / ntot) * (d / ntot)
		}
		for _, d := range dl {
			sum += (d / s.rt) * (d / s.rt)
		}
		s.StepNorm = math.Sqrt(sum)
		return nil
	}
}

// MassBalanceCheck returns a function that calculates the relative
// element balance error. The run fails if the error exceeds
// Config.MaxBalanceError, when that is set.
func MassBalanceCheck() StateManipulator {
	return func(s *State) error {
		if len(s.Elements) == 0 {
			s.BalanceError = 0
			return nil
		}
		g := make([]float64, len(s.Elements))
		s.elementResiduals(g)
		worst, worstK := 0., 0
		for k, v := range g {
			rel := math.Abs(v) / math.Max(math.Abs(s.Targets[k]), MinMoles)
			if rel > worst {
				worst, worstK = rel, k
			}
		}
		s.BalanceError = worst
		if s.cfg.MaxBalanceError > 0 && worst > s.cfg.MaxBalanceError {
			return fmt.Errorf("equilibrium: %w: element %v is off by %.3g (relative) at iteration %d",
				ErrMassBalance, s.Elements[worstK], worst, s.Iteration)
		}
		return nil
	}
}

// ConvergenceCheck returns a function that marks the state as done when
// the step norm is below Config.Tolerance and at least
// Config.MinIterations have been completed, or when Config.MaxIterations
// is reached.
func ConvergenceCheck() StateManipulator {
	return func(s *State) error {
		s.History = append(s.History, s.StepNorm)
		if s.StepNorm < s.cfg.Tolerance && s.Iteration >= s.cfg.MinIterations {
			s.Status = Converged
			s.Done = true
			return nil
		}
		if s.Iteration >= s.cfg.MaxIterations {
			s.Status = MaxIterationsReached
			s.Done = true
			if s.cfg.FailOnNonConvergence {
				return fmt.Errorf("equilibrium: %w after %d iterations (step norm %.3g)",
					ErrNotConverged, s.Iteration, s.StepNorm)
			}
		}
		return nil
	}
}

// result copies the outcome of the run.
func (s *State) result() *Result {
	r := &Result{
		Composition:      make(map[string]float64),
		Temperature:      s.Temperature,
		Pressure:         s.Pressure,
		ReactionEnthalpy: s.ReactionEnthalpy,
		TemperatureDrift: s.TemperatureDrift,
		Iterations:       s.Iteration,
		Converged:        s.Status == Converged,
		Status:           s.Status,
		ResidualNorm:     s.ResidualNorm,
		StepNorm:         s.StepNorm,
		BalanceError:     s.BalanceError,
		History:          append([]float64(nil), s.History...),
	}
	for p, n := range s.Moles {
		pr := PhaseResult{
			Model:       s.phaseTypes[p],
			Composition: make(map[string]float64, len(n)),
		}
		for i, sp := range s.Species {
			pr.Composition[sp.Name] = n[i]
			pr.Moles += n[i]
			r.Composition[sp.Name] += n[i]
		}
		if p == 0 {
			for name, v := range s.Inert {
				pr.Composition[name] += v
				pr.Moles += v
			}
		}
		r.Phases = append(r.Phases, pr)
	}
	for name, v := range s.Inert {
		r.Composition[name] += v
	}
	return r
}
