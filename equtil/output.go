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

package equtil

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/Knetic/govaluate"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/equilibrium"
	"github.com/tealeg/xlsx"
)

// Run calculates the equilibrium of feed and writes the results to
// outputFile, or to w if outputFile is empty. outputVars holds
// additional quantities to calculate from the results. If plotFile is
// not empty, a plot of the convergence history is saved there.
// Results are written even if the run did not converge, in which case
// the run error is returned after writing.
func Run(w io.Writer, cat *equilibrium.Catalog, feed *equilibrium.Feed, cfg *equilibrium.Config,
	phases []equilibrium.PhaseModel, outputFile string, outputVars map[string]string, plotFile string) error {

	log := logrus.StandardLogger()
	s, err := equilibrium.NewSolver(cat, feed, cfg, phases, equilibrium.LogObserver{Log: log, Every: 100})
	if err != nil {
		return err
	}
	if err = s.Init(); err != nil {
		return err
	}
	runErr := s.Run()
	r := s.Result()
	if runErr != nil {
		log.WithField("status", r.Status).Errorf("equilibrium: %v", runErr)
	}

	vars, err := NewOutputter(outputVars, nil)
	if err != nil {
		return err
	}
	values, err := vars.Evaluate(r, cat)
	if err != nil {
		return err
	}

	if err = writeResult(w, outputFile, r, values); err != nil {
		return err
	}
	if plotFile != "" {
		if err = PlotHistory(r, plotFile); err != nil {
			return err
		}
	}
	return runErr
}

// writeResult writes r in the format given by the extension of
// fileName, or as text to w if fileName is empty.
func writeResult(w io.Writer, fileName string, r *equilibrium.Result, vars map[string]float64) error {
	if fileName == "" {
		return WriteText(w, r, vars)
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return WriteXLSX(fileName, r, vars)
	}
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("equilibrium: creating output file: %v", err)
	}
	if strings.ToLower(filepath.Ext(fileName)) == ".toml" {
		err = WriteTOML(f, r, vars)
	} else {
		err = WriteText(f, r, vars)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Outputter calculates derived output variables from results. Each
// variable is an expression of the outlet amount of each species [mol],
// Temperature [K], Pressure [bar], ReactionEnthalpy [J] and
// TotalMoles [mol].
type Outputter struct {
	expressions map[string]*govaluate.EvaluableExpression
	names       []string
	total       float64
}

// NewOutputter parses the output variable expressions. Default functions
// include:
//
// 'exp(x)', 'log(x)' and 'log10(x)'.
//
// 'ppm(x)' which converts an amount to parts per million of the outlet.
func NewOutputter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	o := &Outputter{expressions: make(map[string]*govaluate.EvaluableExpression, len(outputVariables))}
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":   unaryFunc("exp", math.Exp),
		"log":   unaryFunc("log", math.Log),
		"log10": unaryFunc("log10", math.Log10),
		"ppm": unaryFunc("ppm", func(x float64) float64 {
			return x / o.total * 1.e6
		}),
	}
	for key, val := range outputFunctions {
		funcs[key] = val
	}
	for name, expr := range outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
		if err != nil {
			return nil, fmt.Errorf("equilibrium: output variable %s: %v", name, err)
		}
		o.expressions[name] = e
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	return o, nil
}

func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("equilibrium: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("equilibrium: invalid argument %v for function '%s'", args[0], name)
		}
		return f(x), nil
	}
}

// Evaluate calculates the output variables from r. Species in cat that
// are not in the outlet have zero amounts.
func (o *Outputter) Evaluate(r *equilibrium.Result, cat *equilibrium.Catalog) (map[string]float64, error) {
	params := make(map[string]interface{}, cat.Len()+len(r.Composition)+4)
	for _, name := range cat.Names() {
		params[name] = 0.
	}
	o.total = 0
	for name, v := range r.Composition {
		params[name] = v
		o.total += v
	}
	params["Temperature"] = r.Temperature
	params["Pressure"] = r.Pressure
	params["ReactionEnthalpy"] = r.ReactionEnthalpy
	params["TotalMoles"] = o.total

	values := make(map[string]float64, len(o.names))
	for _, name := range o.names {
		v, err := o.expressions[name].Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("equilibrium: evaluating output variable %s: %v", name, err)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("equilibrium: output variable %s is not a number: %v", name, v)
		}
		values[name] = f
	}
	return values, nil
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys(m map[string]float64) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// summary returns the scalar results in display order.
func summary(r *equilibrium.Result) [][2]interface{} {
	return [][2]interface{}{
		{"Status", r.Status.String()},
		{"Converged", r.Converged},
		{"Iterations", r.Iterations},
		{"Temperature [K]", r.Temperature},
		{"Pressure [bar]", r.Pressure},
		{"ReactionEnthalpy [J]", r.ReactionEnthalpy},
		{"StepNorm", r.StepNorm},
		{"ResidualNorm", r.ResidualNorm},
		{"BalanceError", r.BalanceError},
	}
}

// WriteText writes r as a plain text table.
func WriteText(w io.Writer, r *equilibrium.Result, vars map[string]float64) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, s := range summary(r) {
		fmt.Fprintf(tw, "%v\t%v\n", s[0], s[1])
	}
	for _, name := range sortedKeys(vars) {
		fmt.Fprintf(tw, "%s\t%g\n", name, vars[name])
	}
	fmt.Fprintln(tw)

	fmt.Fprint(tw, "Species\tMoles\tFraction")
	if len(r.Phases) > 1 {
		for p, ph := range r.Phases {
			fmt.Fprintf(tw, "\tPhase %d (%v)", p, ph.Model)
		}
	}
	fmt.Fprintln(tw)
	fractions := r.Fractions()
	for _, name := range sortedKeys(r.Composition) {
		fmt.Fprintf(tw, "%s\t%.6e\t%.6e", name, r.Composition[name], fractions[name])
		if len(r.Phases) > 1 {
			for _, ph := range r.Phases {
				fmt.Fprintf(tw, "\t%.6e", ph.Composition[name])
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

type tomlPhase struct {
	Model       string
	Moles       float64
	Composition map[string]float64
}

type tomlResult struct {
	Status           string
	Converged        bool
	Iterations       int
	Temperature      float64
	Pressure         float64
	ReactionEnthalpy float64
	StepNorm         float64
	ResidualNorm     float64
	BalanceError     float64
	Variables        map[string]float64
	Composition      map[string]float64
	Fractions        map[string]float64
	Phases           []tomlPhase
}

// WriteTOML writes r in TOML format.
func WriteTOML(w io.Writer, r *equilibrium.Result, vars map[string]float64) error {
	o := tomlResult{
		Status:           r.Status.String(),
		Converged:        r.Converged,
		Iterations:       r.Iterations,
		Temperature:      r.Temperature,
		Pressure:         r.Pressure,
		ReactionEnthalpy: r.ReactionEnthalpy,
		StepNorm:         r.StepNorm,
		ResidualNorm:     r.ResidualNorm,
		BalanceError:     r.BalanceError,
		Variables:        vars,
		Composition:      r.Composition,
		Fractions:        r.Fractions(),
	}
	for _, ph := range r.Phases {
		o.Phases = append(o.Phases, tomlPhase{
			Model:       ph.Model.String(),
			Moles:       ph.Moles,
			Composition: ph.Composition,
		})
	}
	if err := toml.NewEncoder(w).Encode(o); err != nil {
		return fmt.Errorf("equilibrium: writing TOML output: %v", err)
	}
	return nil
}

// WriteXLSX writes r to an Excel file with a summary sheet and a
// composition sheet.
func WriteXLSX(fileName string, r *equilibrium.Result, vars map[string]float64) error {
	f := xlsx.NewFile()
	sum, err := f.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("equilibrium: writing XLSX output: %v", err)
	}
	for _, s := range summary(r) {
		row := sum.AddRow()
		row.AddCell().SetString(s[0].(string))
		c := row.AddCell()
		switch v := s[1].(type) {
		case float64:
			c.SetFloat(v)
		case int:
			c.SetInt(v)
		case bool:
			c.SetBool(v)
		default:
			c.SetString(fmt.Sprint(v))
		}
	}
	for _, name := range sortedKeys(vars) {
		row := sum.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetFloat(vars[name])
	}

	comp, err := f.AddSheet("Composition")
	if err != nil {
		return fmt.Errorf("equilibrium: writing XLSX output: %v", err)
	}
	header := comp.AddRow()
	for _, h := range []string{"Species", "Moles", "Fraction"} {
		header.AddCell().SetString(h)
	}
	for p, ph := range r.Phases {
		header.AddCell().SetString(fmt.Sprintf("Phase %d (%v)", p, ph.Model))
	}
	fractions := r.Fractions()
	for _, name := range sortedKeys(r.Composition) {
		row := comp.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetFloat(r.Composition[name])
		row.AddCell().SetFloat(fractions[name])
		for _, ph := range r.Phases {
			row.AddCell().SetFloat(ph.Composition[name])
		}
	}
	if err := f.Save(fileName); err != nil {
		return fmt.Errorf("equilibrium: writing XLSX output: %v", err)
	}
	return nil
}

// WriteSpecies writes a table of the species in cat.
func WriteSpecies(w io.Writer, cat *equilibrium.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tFormula\tHf [kJ/mol]\tGf [kJ/mol]\tS0 [J/mol/K]")
	for _, name := range cat.Names() {
		s, _ := cat.Get(name)
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.3f\n", s.Name, s.Formula(), s.Hf/1000, s.Gf/1000, s.S0)
	}
	return tw.Flush()
}
