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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/unit"
	"github.com/ctessum/unit/badunit"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/equilibrium"
	"github.com/spatialmodel/equilibrium/science/phase"
	"github.com/spf13/cast"
)

// LoadCatalog loads the species database. If speciesFile is empty, the
// built-in database is used. If polyFile is not empty, the polynomial
// overrides in it are applied. Both paths can include environment
// variables.
func LoadCatalog(speciesFile, polyFile string) (*equilibrium.Catalog, error) {
	var cat *equilibrium.Catalog
	var err error
	if speciesFile == "" {
		cat, err = equilibrium.DefaultCatalog()
	} else {
		var f *os.File
		f, err = os.Open(os.ExpandEnv(speciesFile))
		if err != nil {
			return nil, fmt.Errorf("equilibrium: opening species file: %v", err)
		}
		defer f.Close()
		cat, err = equilibrium.ReadSpecies(f)
	}
	if err != nil {
		return nil, err
	}
	if polyFile == "" {
		return cat, nil
	}
	f, err := os.Open(os.ExpandEnv(polyFile))
	if err != nil {
		return nil, fmt.Errorf("equilibrium: opening polynomial file: %v", err)
	}
	defer f.Close()
	return equilibrium.ReadPolynomials(f, cat)
}

// FeedConfig creates a feed from the configuration. Species names that
// match a species in cat except for case are replaced by the catalog name.
func FeedConfig(cfg *viper.Viper, cat *equilibrium.Catalog) (*equilibrium.Feed, error) {
	comp, err := getStringMapFloat("Feed.Composition", cfg)
	if err != nil {
		return nil, err
	}
	comp = matchNames(comp, cat)
	T, err := temperature(cfg.GetFloat64("Feed.Temperature"), cfg.GetString("Feed.TemperatureUnits"))
	if err != nil {
		return nil, err
	}
	P, err := pressure(cfg.GetFloat64("Feed.Pressure"), cfg.GetString("Feed.PressureUnits"))
	if err != nil {
		return nil, err
	}
	return equilibrium.NewFeed(comp, T, P)
}

func matchNames(comp map[string]float64, cat *equilibrium.Catalog) map[string]float64 {
	lower := make(map[string]string, cat.Len())
	for _, name := range cat.Names() {
		lower[strings.ToLower(name)] = name
	}
	o := make(map[string]float64, len(comp))
	for name, v := range comp {
		if _, ok := cat.Get(name); !ok {
			if n, ok := lower[strings.ToLower(name)]; ok {
				name = n
			}
		}
		o[name] += v
	}
	return o
}

// temperature converts a temperature in the given units to a
// dimensioned value.
func temperature(v float64, units string) (*unit.Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(units)) {
	case "K", "KELVIN":
		return unit.New(v, unit.Kelvin), nil
	case "C", "CELSIUS":
		return unit.New(v+273.15, unit.Kelvin), nil
	case "F", "FAHRENHEIT":
		return badunit.Fahrenheit(v), nil
	}
	return nil, fmt.Errorf("equilibrium: %w: Feed.TemperatureUnits must be K, C, or F but is `%s`",
		equilibrium.ErrConfig, units)
}

// pressure converts a pressure in the given units to a dimensioned value.
func pressure(v float64, units string) (*unit.Unit, error) {
	switch strings.ToLower(strings.TrimSpace(units)) {
	case "bar":
		return unit.New(v*1.e5, unit.Pascal), nil
	case "pa":
		return unit.New(v, unit.Pascal), nil
	case "kpa":
		return unit.New(v*1.e3, unit.Pascal), nil
	case "atm":
		return unit.New(v*101325, unit.Pascal), nil
	}
	return nil, fmt.Errorf("equilibrium: %w: Feed.PressureUnits must be bar, Pa, kPa, or atm but is `%s`",
		equilibrium.ErrConfig, units)
}

// SolverConfig creates the solver settings from the configuration.
func SolverConfig(cfg *viper.Viper) (*equilibrium.Config, error) {
	mode, err := equilibrium.ParseEnergyMode(cfg.GetString("Solver.EnergyMode"))
	if err != nil {
		return nil, err
	}
	c := &equilibrium.Config{
		EnergyMode:           mode,
		MaxIterations:        cfg.GetInt("Solver.MaxIterations"),
		MinIterations:        cfg.GetInt("Solver.MinIterations"),
		Tolerance:            cfg.GetFloat64("Solver.Tolerance"),
		Damping:              cfg.GetFloat64("Solver.Damping"),
		LambdaDamping:        cfg.GetFloat64("Solver.LambdaDamping"),
		UseAllSpecies:        cfg.GetBool("Solver.UseAllSpecies"),
		Products:             cfg.GetStringSlice("Solver.Products"),
		Inert:                cfg.GetStringSlice("Solver.Inert"),
		FugacityDerivatives:  cfg.GetBool("Solver.FugacityDerivatives"),
		MaxBalanceError:      cfg.GetFloat64("Solver.MaxBalanceError"),
		FailOnNonConvergence: cfg.GetBool("Solver.FailOnNonConvergence"),
		MaxTemperatureStep:   cfg.GetFloat64("Solver.MaxTemperatureStep"),
		ConditionLimit:       cfg.GetFloat64("Solver.ConditionLimit"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// PhaseConfig creates the phase models from the configuration.
func PhaseConfig(cfg *viper.Viper) ([]equilibrium.PhaseModel, error) {
	return phase.Parse(cfg.GetStringSlice("Phases"))
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile expands any environment variables in the output file
// path and makes sure that its directory exists. An empty path is allowed.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("equilibrium: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		return cast.ToStringMapString(v)
	case string:
		b := bytes.NewBuffer([]byte(v))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// getStringMapFloat returns a map[string]float64 from a viper
// configuration. The values can be numbers or numeric strings.
func getStringMapFloat(varName string, cfg *viper.Viper) (map[string]float64, error) {
	var m map[string]interface{}
	switch v := cfg.Get(varName).(type) {
	case map[string]interface{}:
		m = v
	case map[string]string:
		m = make(map[string]interface{}, len(v))
		for k, s := range v {
			m[k] = s
		}
	case string:
		if err := json.NewDecoder(strings.NewReader(v)).Decode(&m); err != nil {
			return nil, fmt.Errorf("equilibrium: %w: %s: %v", equilibrium.ErrConfig, varName, err)
		}
	default:
		return nil, fmt.Errorf("equilibrium: %w: invalid type for %s: %#v", equilibrium.ErrConfig, varName, v)
	}
	o := make(map[string]float64, len(m))
	for k, v := range m {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("equilibrium: %w: %s: species %s: %v", equilibrium.ErrConfig, varName, k, err)
		}
		o[k] = f
	}
	return o, nil
}
