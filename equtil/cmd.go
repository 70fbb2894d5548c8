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

// Package equtil provides the command-line interface and configuration
// handling for the equilibrium solver.
package equtil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/equilibrium"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the solver.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel sets the logging level. Valid options are "debug",
              "info", "warning" and "error".`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Species.File",
			usage: `
              Species.File is the path to a species database file. If it is
              empty, the built-in database is used. The path can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), speciesCmd.Flags()},
		},
		{
			name: "Species.Polynomials",
			usage: `
              Species.Polynomials is the path to an optional file of
              Gibbs energy and enthalpy polynomial coefficients that
              override the heat capacity fits of the species database.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), speciesCmd.Flags()},
		},
		{
			name: "Feed.Composition",
			usage: `
              Feed.Composition gives the amount of each species in the feed
              [mol], with species names as keys.`,
			defaultVal: map[string]string{
				"CH4": "1",
				"O2":  "2",
				"N2":  "7.52",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Feed.Temperature",
			usage: `
              Feed.Temperature is the feed temperature, in Feed.TemperatureUnits.`,
			shorthand:  "t",
			defaultVal: 298.15,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Feed.TemperatureUnits",
			usage: `
              Feed.TemperatureUnits gives the units of the feed temperature.
              Valid options are "K", "C" and "F".`,
			defaultVal: "K",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Feed.Pressure",
			usage: `
              Feed.Pressure is the system pressure, in Feed.PressureUnits.`,
			shorthand:  "p",
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Feed.PressureUnits",
			usage: `
              Feed.PressureUnits gives the units of the pressure. Valid
              options are "bar", "Pa", "kPa" and "atm".`,
			defaultVal: "bar",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Phases",
			usage: `
              Phases lists the phase models, one per phase. The feed is
              placed in the first phase. Valid options are "IdealGas",
              "PengRobinson", "SRK" and "Aqueous".`,
			defaultVal: []string{"IdealGas"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.EnergyMode",
			usage: `
              Solver.EnergyMode is either "adiabatic", where the temperature
              changes with the heat of reaction, or "isothermal".`,
			defaultVal: "adiabatic",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.MaxIterations",
			usage: `
              Solver.MaxIterations is the maximum number of iterations.`,
			defaultVal: 5000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.MinIterations",
			usage: `
              Solver.MinIterations is the number of iterations that must be
              completed before the run can converge.`,
			defaultVal: 25,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.Tolerance",
			usage: `
              Solver.Tolerance is the step norm below which the run has
              converged.`,
			defaultVal: 1.e-8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.Damping",
			usage: `
              Solver.Damping is the fraction of each Newton-Raphson step
              that is applied. Adiabatic runs with large damping factors
              can become unstable.`,
			shorthand:  "d",
			defaultVal: 0.05,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.LambdaDamping",
			usage: `
              Solver.LambdaDamping scales the step applied to the element
              Lagrange multipliers.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.UseAllSpecies",
			usage: `
              If Solver.UseAllSpecies is true, all species in the database
              that can be formed from the feed elements are possible products.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.Products",
			usage: `
              Solver.Products lists additional possible product species.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.Inert",
			usage: `
              Solver.Inert lists feed species that do not react.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.FugacityDerivatives",
			usage: `
              If Solver.FugacityDerivatives is true, the composition
              derivatives of the fugacity coefficients are included in the
              Jacobian.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.MaxBalanceError",
			usage: `
              Solver.MaxBalanceError is the largest allowed relative element
              balance error. Zero disables the check.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.FailOnNonConvergence",
			usage: `
              If Solver.FailOnNonConvergence is true, reaching
              Solver.MaxIterations is an error.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.MaxTemperatureStep",
			usage: `
              Solver.MaxTemperatureStep is the largest temperature change
              [K] allowed in a single adiabatic iteration.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.ConditionLimit",
			usage: `
              Solver.ConditionLimit is the Jacobian condition number above
              which the solver falls back to constraint reduction and a
              pseudo-inverse.`,
			defaultVal: 1.e14,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file. The format
              is chosen by the file extension: ".toml", ".xlsx", or plain
              text for anything else. If it is empty, results are printed to
              standard output. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies additional quantities to calculate
              from the results, as expressions of species amounts [mol] and
              the variables Temperature, Pressure, ReactionEnthalpy and
              TotalMoles.`,
			defaultVal: map[string]string{
				"HeatRelease": "-ReactionEnthalpy / 1000",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where a plot of the step norm at each
              iteration should be saved. The format is chosen by the file
              extension (e.g. ".png", ".svg", ".pdf"). If it is empty, no
              plot is made.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("EQUILIBRIUM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(speciesCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("equilibrium: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("equilibrium: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "equilibrium",
	Short: "A chemical equilibrium solver.",
	Long: `equilibrium calculates the composition, temperature and heat release
of a reacting mixture at chemical and phase equilibrium by minimizing its
Gibbs free energy subject to element conservation.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'EQUILIBRIUM_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of the solver.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("equilibrium v%s\n", equilibrium.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that calculates the equilibrium of a feed.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Calculate an equilibrium.",
	Long: `run calculates the equilibrium state of the feed specified in the
configuration and writes the results to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := LoadCatalog(Cfg.GetString("Species.File"), Cfg.GetString("Species.Polynomials"))
		if err != nil {
			return err
		}
		feed, err := FeedConfig(Cfg, cat)
		if err != nil {
			return err
		}
		cfg, err := SolverConfig(Cfg)
		if err != nil {
			return err
		}
		phases, err := PhaseConfig(Cfg)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		plotFile, err := checkOutputFile(Cfg.GetString("PlotFile"))
		if err != nil {
			return err
		}
		return Run(cmd.OutOrStdout(), cat, feed, cfg, phases, outputFile, outputVars, plotFile)
	},
	DisableAutoGenTag: true,
}

// speciesCmd is a command that lists the species database.
var speciesCmd = &cobra.Command{
	Use:   "species",
	Short: "List the species database.",
	Long: `species lists the species in the database along with their
elemental composition and standard-state properties.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := LoadCatalog(Cfg.GetString("Species.File"), Cfg.GetString("Species.Polynomials"))
		if err != nil {
			return err
		}
		return WriteSpecies(cmd.OutOrStdout(), cat)
	},
	DisableAutoGenTag: true,
}
