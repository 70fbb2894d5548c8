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

// Package data holds the species database that is distributed with the
// equilibrium package.
package data

import _ "embed"

// Species holds the default species database in CSV format.
//
//go:embed species.csv
var Species []byte

// Polynomials holds the default Gibbs energy and enthalpy polynomial
// overrides in CSV format.
//
//go:embed polynomials.csv
var Polynomials []byte
