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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/equilibrium/data"
)

// Row widths of the two supported species file layouts. The legacy
// layout has six element columns (O, N, C, H, S, Ar) and the newer one
// adds a charge column (Z).
const (
	legacyRowWidth = 1 + 6 + 4 + 3
	rowWidth       = 1 + NumElements + 4 + 3
)

// ReadSpecies reads a species database from r. Each record holds the
// species name, its elemental composition, the four heat capacity
// coefficients, and the enthalpy of formation [kJ/mol], Gibbs energy of
// formation [kJ/mol], and standard entropy [J/mol/K] at 298.15 K.
// Lines starting with '#' and a header line are ignored. Malformed records
// are skipped with a warning.
func ReadSpecies(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var species []Species
	seen := make(map[string]bool)
	line := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("equilibrium: reading species: %v", err)
		}
		line++
		if line == 1 && isHeader(rec) {
			continue
		}
		s, err := parseSpecies(rec)
		if err != nil {
			Log.WithFields(logrus.Fields{"record": line}).Warnf("equilibrium: skipping species record: %v", err)
			continue
		}
		if seen[s.Name] {
			Log.WithFields(logrus.Fields{"record": line, "species": s.Name}).Warn("equilibrium: skipping duplicate species")
			continue
		}
		seen[s.Name] = true
		species = append(species, s)
	}
	if len(species) == 0 {
		return nil, fmt.Errorf("equilibrium: %w: no valid species records", ErrNoSpecies)
	}
	return NewCatalog(species...)
}

func isHeader(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	return err != nil
}

func parseSpecies(rec []string) (Species, error) {
	var s Species
	var nElem int
	switch len(rec) {
	case legacyRowWidth:
		nElem = 6
	case rowWidth:
		nElem = NumElements
	default:
		return s, fmt.Errorf("invalid number of fields %d (need %d or %d)", len(rec), legacyRowWidth, rowWidth)
	}
	s.Name = strings.TrimSpace(rec[0])
	if s.Name == "" {
		return s, fmt.Errorf("missing species name")
	}
	vals := make([]float64, len(rec)-1)
	for i, f := range rec[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return s, fmt.Errorf("species %s, field %d: %v", s.Name, i+2, err)
		}
		vals[i] = v
	}
	copy(s.Elements[:nElem], vals[:nElem])
	copy(s.Cp[:], vals[nElem:nElem+4])
	s.Hf = vals[nElem+4] * 1000
	s.Gf = vals[nElem+5] * 1000
	s.S0 = vals[nElem+6]
	return s, nil
}

// ReadPolynomials reads Gibbs energy and enthalpy polynomial overrides from
// r and returns a new catalog holding the species in c with the overrides
// applied. Each record holds a species name, the property ("G" or "H") and
// six polynomial coefficients in ascending powers of T, giving J/mol.
// Species that are not in c and malformed records are skipped with a
// warning. c itself is not modified.
func ReadPolynomials(r io.Reader, c *Catalog) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	species := c.Species()
	line := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("equilibrium: reading polynomials: %v", err)
		}
		line++
		if line == 1 && len(rec) > 2 && isHeader(rec[1:]) {
			continue
		}
		if len(rec) != 8 {
			Log.WithFields(logrus.Fields{"record": line}).Warnf("equilibrium: skipping polynomial record with %d fields", len(rec))
			continue
		}
		name := strings.TrimSpace(rec[0])
		i := c.Index(name)
		if i < 0 {
			Log.WithFields(logrus.Fields{"record": line, "species": name}).Warn("equilibrium: skipping polynomial for unknown species")
			continue
		}
		var p [6]float64
		ok := true
		for j := range p {
			p[j], err = strconv.ParseFloat(strings.TrimSpace(rec[j+2]), 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			Log.WithFields(logrus.Fields{"record": line, "species": name}).Warnf("equilibrium: skipping polynomial record: %v", err)
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(rec[1])) {
		case "G":
			species[i].GPoly = &p
		case "H":
			species[i].HPoly = &p
		default:
			Log.WithFields(logrus.Fields{"record": line, "species": name}).Warnf("equilibrium: invalid polynomial property %q", rec[1])
		}
	}
	return NewCatalog(species...)
}

var (
	defaultCatalog    *Catalog
	defaultCatalogErr error
	defaultCatalogMu  sync.Once
)

// DefaultCatalog returns the species database that is distributed with
// this package. It is loaded once and shared.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogMu.Do(func() {
		c, err := ReadSpecies(bytes.NewReader(data.Species))
		if err != nil {
			defaultCatalogErr = err
			return
		}
		defaultCatalog, defaultCatalogErr = ReadPolynomials(bytes.NewReader(data.Polynomials), c)
	})
	return defaultCatalog, defaultCatalogErr
}
