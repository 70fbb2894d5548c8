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
	"github.com/sirupsen/logrus"
)

// Log receives warnings from species loading and run setup, for example
// about skipped database records or feed species that are not in the
// catalog.
var Log logrus.FieldLogger = logrus.StandardLogger()

// Observer receives progress information from a run. Observers can
// inspect the State but must not modify it.
type Observer interface {
	// Iteration is called at the end of every iteration.
	Iteration(s *State)

	// Done is called once when a run finishes without error.
	Done(s *State)
}

// NopObserver ignores all run information.
type NopObserver struct{}

// Iteration does nothing.
func (NopObserver) Iteration(*State) {}

// Done does nothing.
func (NopObserver) Done(*State) {}

// LogObserver writes run progress to a logger.
type LogObserver struct {
	Log logrus.FieldLogger

	// Every is the number of iterations between progress messages.
	// Values less than 1 are treated as 1.
	Every int
}

func (o LogObserver) fields(s *State) logrus.Fields {
	return logrus.Fields{
		"iteration":    s.Iteration,
		"temperature":  s.Temperature,
		"step":         s.StepNorm,
		"residual":     s.ResidualNorm,
		"balanceError": s.BalanceError,
	}
}

// Iteration logs the state at debug level.
func (o LogObserver) Iteration(s *State) {
	every := o.Every
	if every < 1 {
		every = 1
	}
	if s.Iteration%every != 0 {
		return
	}
	o.Log.WithFields(o.fields(s)).Debug("equilibrium iteration")
}

// Done logs the final state at info level, or at warning level if the
// run did not converge.
func (o LogObserver) Done(s *State) {
	l := o.Log.WithFields(o.fields(s)).WithField("status", s.Status)
	if s.Status != Converged {
		l.Warn("equilibrium run finished without converging")
		return
	}
	l.Info("equilibrium run converged")
}

// Observe returns a function that reports the state to o.
func Observe(o Observer) StateManipulator {
	if o == nil {
		o = NopObserver{}
	}
	return func(s *State) error {
		o.Iteration(s)
		if s.Done {
			o.Done(s)
		}
		return nil
	}
}
