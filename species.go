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
	"math"
	"strings"
)

// Element is a chemical element tracked in mole balances.
type Element int

// These are the tracked elements. Z is a generic charge slot that
// keeps ionic species electrically neutral.
const (
	O Element = iota
	N
	C
	H
	S
	Ar
	Z

	// NumElements is the number of tracked elements.
	NumElements = 7
)

var elementNames = [NumElements]string{"O", "N", "C", "H", "S", "Ar", "Z"}

func (e Element) String() string {
	if e < 0 || int(e) >= NumElements {
		return fmt.Sprintf("Element(%d)", int(e))
	}
	return elementNames[e]
}

// ParseElement returns the element with the given symbol.
func ParseElement(s string) (Element, error) {
	for i, n := range elementNames {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return Element(i), nil
		}
	}
	return -1, fmt.Errorf("equilibrium: invalid element %q", s)
}

// Temperature limits of the heat capacity correlation [K]. Outside of
// this range the heat capacity is held at its value at the nearest limit.
const (
	TMin = 200.
	TMax = 3000.
)

// Species holds the thermodynamic data for a single chemical species.
// Species values are not modified after they are loaded.
type Species struct {
	Name string

	// Elements holds the number of atoms of each element in one
	// molecule of the species.
	Elements [NumElements]float64

	// Cp holds the coefficients of the heat capacity polynomial
	// Cp = A + B·T + C·T² + D·T³ [J/mol/K], with T in K.
	Cp [4]float64

	Hf float64 // Enthalpy of formation at TRef [J/mol]
	Gf float64 // Gibbs energy of formation at TRef [J/mol]
	S0 float64 // Standard entropy at TRef [J/mol/K]

	// GPoly and HPoly optionally override the Gibbs energy and enthalpy
	// calculations with 5th order polynomials in T [J/mol].
	GPoly, HPoly *[6]float64
}

func clampT(T float64) float64 {
	return math.Min(math.Max(T, TMin), TMax)
}

func (s *Species) cpRaw(T float64) float64 {
	c := s.Cp
	return c[0] + T*(c[1]+T*(c[2]+T*c[3]))
}

// cpIntegral returns ∫Cp dT from a to b.
func (s *Species) cpIntegral(a, b float64) float64 {
	c := s.Cp
	f := func(T float64) float64 {
		return T * (c[0] + T*(c[1]/2+T*(c[2]/3+T*c[3]/4)))
	}
	return f(b) - f(a)
}

// cpTIntegral returns ∫Cp/T dT from a to b.
func (s *Species) cpTIntegral(a, b float64) float64 {
	c := s.Cp
	f := func(T float64) float64 {
		return c[0]*math.Log(T) + T*(c[1]+T*(c[2]/2+T*c[3]/3))
	}
	return f(b) - f(a)
}

func polyval(p *[6]float64, T float64) float64 {
	v := 0.
	for i := len(p) - 1; i >= 0; i-- {
		v = v*T + p[i]
	}
	return v
}

func polyderiv(p *[6]float64, T float64) float64 {
	v := 0.
	for i := len(p) - 1; i >= 1; i-- {
		v = v*T + float64(i)*p[i]
	}
	return v
}

// HeatCapacity returns the molar heat capacity at temperature T [J/mol/K].
func (s *Species) HeatCapacity(T float64) float64 {
	if s.HPoly != nil {
		return polyderiv(s.HPoly, T)
	}
	return s.cpRaw(clampT(T))
}

// Enthalpy returns the molar enthalpy at temperature T, including the
// enthalpy of formation [J/mol].
func (s *Species) Enthalpy(T float64) float64 {
	if s.HPoly != nil {
		return polyval(s.HPoly, T)
	}
	return s.Hf + s.sensibleEnthalpy(T)
}

func (s *Species) sensibleEnthalpy(T float64) float64 {
	Tc := clampT(T)
	return s.cpIntegral(TRef, Tc) + s.cpRaw(Tc)*(T-Tc)
}

// Entropy returns the molar standard entropy at temperature T [J/mol/K].
func (s *Species) Entropy(T float64) float64 {
	Tc := clampT(T)
	return s.S0 + s.cpTIntegral(TRef, Tc) + s.cpRaw(Tc)*math.Log(T/Tc)
}

// Gibbs returns the standard Gibbs energy of formation at
// temperature T [J/mol]. It is equal to Gf at TRef.
func (s *Species) Gibbs(T float64) float64 {
	if s.GPoly != nil {
		return polyval(s.GPoly, T)
	}
	return s.Gf + s.sensibleEnthalpy(T) - (T*s.Entropy(T) - TRef*s.S0)
}

// HasElement returns whether the species contains element e.
func (s *Species) HasElement(e Element) bool {
	return math.Abs(s.Elements[e]) > elementTolerance
}

// Formula returns a compact string representation of the elemental
// composition, for example "C1H4".
func (s *Species) Formula() string {
	var b strings.Builder
	for e := Element(0); e < NumElements; e++ {
		v := s.Elements[e]
		if v == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s%g", e, v)
	}
	return b.String()
}
