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
)

// Catalog is a read-only database of species thermodynamic data.
// A Catalog can be shared by any number of solvers.
type Catalog struct {
	species []*Species
	index   map[string]int
}

// NewCatalog creates a catalog holding copies of the given species.
// Species names must be unique and non-empty.
func NewCatalog(species ...Species) (*Catalog, error) {
	c := &Catalog{
		species: make([]*Species, 0, len(species)),
		index:   make(map[string]int, len(species)),
	}
	for i := range species {
		s := species[i]
		if s.Name == "" {
			return nil, fmt.Errorf("equilibrium: species %d has no name", i)
		}
		if _, ok := c.index[s.Name]; ok {
			return nil, fmt.Errorf("equilibrium: duplicate species %q", s.Name)
		}
		c.index[s.Name] = len(c.species)
		c.species = append(c.species, &s)
	}
	return c, nil
}

// Len returns the number of species in the catalog.
func (c *Catalog) Len() int { return len(c.species) }

// Get returns the species with the given name.
func (c *Catalog) Get(name string) (*Species, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.species[i], true
}

// Index returns the position of the named species, or -1.
func (c *Catalog) Index(name string) int {
	i, ok := c.index[name]
	if !ok {
		return -1
	}
	return i
}

// At returns the i'th species.
func (c *Catalog) At(i int) *Species { return c.species[i] }

// Names returns the species names in catalog order.
func (c *Catalog) Names() []string {
	o := make([]string, len(c.species))
	for i, s := range c.species {
		o[i] = s.Name
	}
	return o
}

// Species returns copies of all of the species in the catalog.
func (c *Catalog) Species() []Species {
	o := make([]Species, len(c.species))
	for i, s := range c.species {
		o[i] = *s
	}
	return o
}

// Containing returns the names of the catalog species whose elements are
// all within the given set, sorted by name.
func (c *Catalog) Containing(elements []Element) []string {
	allowed := make(map[Element]bool, len(elements))
	for _, e := range elements {
		allowed[e] = true
	}
	var o []string
	for _, s := range c.species {
		ok := true
		for e := Element(0); e < NumElements; e++ {
			if s.HasElement(e) && !allowed[e] {
				ok = false
				break
			}
		}
		if ok {
			o = append(o, s.Name)
		}
	}
	sort.Strings(o)
	return o
}
