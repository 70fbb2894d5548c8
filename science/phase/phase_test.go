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

package phase

import (
	"errors"
	"testing"

	"github.com/spatialmodel/equilibrium"
)

func TestParse(t *testing.T) {
	models, err := Parse([]string{"IdealGas", "peng-robinson", "SRK", "aqueous"})
	if err != nil {
		t.Fatal(err)
	}
	want := []equilibrium.ModelType{equilibrium.IdealGas, equilibrium.PengRobinson, equilibrium.SRK, equilibrium.Aqueous}
	if len(models) != len(want) {
		t.Fatalf("have %d models, want %d", len(models), len(want))
	}
	for i, m := range models {
		if m.Type() != want[i] {
			t.Errorf("model %d: have %v, want %v", i, m.Type(), want[i])
		}
	}

	models, err = Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0].Type() != equilibrium.IdealGas {
		t.Errorf("default phases: %v", models)
	}

	if _, err = Parse([]string{"plasma"}); !errors.Is(err, equilibrium.ErrConfig) {
		t.Errorf("want ErrConfig, have %v", err)
	}
	if _, err = New(equilibrium.ModelType(99)); !errors.Is(err, equilibrium.ErrConfig) {
		t.Errorf("want ErrConfig, have %v", err)
	}
}
