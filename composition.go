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
	"sort"

	"github.com/sirupsen/logrus"
)

// SetComposition returns a function that sets up the reacting mixture
// from the feed. Feed species listed in Config.Inert, species that are
// missing from the catalog and species without any elements do not
// react and pass through the run unchanged. Possible products are added
// at a trace amount: all catalog species that can be formed from the
// feed elements if Config.UseAllSpecies is set, plus any listed in
// Config.Products. The element balance targets are calculated from the
// feed before products are added, and linearly dependent element
// constraints are removed.
func SetComposition(cat *Catalog, feed *Feed, cfg *Config) StateManipulator {
	return func(s *State) error {
		s.cfg = cfg
		if s.log == nil {
			s.log = Log
		}
		s.Temperature = feed.Temperature
		s.Pressure = feed.Pressure
		s.Inert = make(map[string]float64)

		inert := make(map[string]bool, len(cfg.Inert))
		for _, name := range cfg.Inert {
			inert[name] = true
		}

		var feedMoles []float64
		for _, name := range feed.names() {
			v := feed.Composition[name]
			sp, ok := cat.Get(name)
			switch {
			case inert[name]:
				s.addInert(name, v, sp)
			case !ok:
				s.log.WithFields(logrus.Fields{"species": name, "moles": v}).
					Warn("equilibrium: species is not in the catalog; treating it as inert")
				s.addInert(name, v, nil)
			case !hasElements(sp):
				s.log.WithField("species", name).Warn("equilibrium: species has no elements; treating it as inert")
				s.addInert(name, v, sp)
			default:
				s.Species = append(s.Species, sp)
				feedMoles = append(feedMoles, v)
			}
		}

		active := ActiveElements(s.Species, feedMoles)

		// Feed species with no amount can only react if all of their
		// elements are supplied by other feed species.
		reacting, amounts := s.Species[:0], feedMoles[:0]
		for i, sp := range s.Species {
			if feedMoles[i] == 0 && !formedFrom(sp, active) {
				s.addInert(sp.Name, 0, sp)
				continue
			}
			reacting = append(reacting, sp)
			amounts = append(amounts, feedMoles[i])
		}
		s.Species, feedMoles = reacting, amounts

		var products []string
		if cfg.UseAllSpecies {
			products = cat.Containing(active)
		}
		extra := append([]string(nil), cfg.Products...)
		sort.Strings(extra)
		for _, name := range extra {
			sp, ok := cat.Get(name)
			if !ok {
				return fmt.Errorf("equilibrium: %w: product species %q is not in the catalog", ErrConfig, name)
			}
			if !formedFrom(sp, active) {
				s.log.WithField("species", name).Warn("equilibrium: product contains elements that are not in the feed; skipping it")
				continue
			}
			products = append(products, name)
		}
		have := make(map[string]bool, len(s.Species))
		for _, sp := range s.Species {
			have[sp.Name] = true
		}
		for _, name := range products {
			if have[name] || inert[name] {
				continue
			}
			sp, _ := cat.Get(name)
			if !hasElements(sp) {
				continue
			}
			have[name] = true
			s.Species = append(s.Species, sp)
		}

		moles := make([]float64, len(s.Species))
		copy(moles, feedMoles)
		for i := len(feedMoles); i < len(moles); i++ {
			moles[i] = TraceMoles
		}
		for i := range moles {
			if moles[i] < MinMoles {
				moles[i] = MinMoles
			}
		}
		s.Moles = [][]float64{moles}

		totals := ElementTotals(s.Species[:len(feedMoles)], feedMoles)
		targets := make([]float64, len(active))
		for k, e := range active {
			targets[k] = totals[e]
		}
		keep := active
		if len(active) > 0 {
			keep = RemoveRedundantConstraints(CoefficientMatrix(active, s.Species), active)
		}
		s.setElements(keep, targets, active)

		s.log.WithFields(logrus.Fields{
			"species":  len(s.Species),
			"elements": s.Elements,
			"inert":    len(s.Inert),
		}).Debug("equilibrium: set up reacting mixture")
		return nil
	}
}

func (s *State) addInert(name string, v float64, sp *Species) {
	s.Inert[name] += v
	s.inertTotal += v
	if sp != nil {
		s.inertKnown = append(s.inertKnown, sp)
		s.inertMoles = append(s.inertMoles, v)
	}
}

func hasElements(sp *Species) bool {
	for e := Element(0); e < NumElements; e++ {
		if sp.HasElement(e) {
			return true
		}
	}
	return false
}

// formedFrom returns whether all of the elements in sp are in the set.
func formedFrom(sp *Species, elements []Element) bool {
	for e := Element(0); e < NumElements; e++ {
		if !sp.HasElement(e) {
			continue
		}
		found := false
		for _, a := range elements {
			if a == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
