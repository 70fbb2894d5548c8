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

	"github.com/spatialmodel/equilibrium"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHistory saves a plot of the step norm at each iteration of r to
// fileName. The format is chosen by the file extension. The step norm is
// plotted on a logarithmic scale, skipping iterations where it is zero.
func PlotHistory(r *equilibrium.Result, fileName string) error {
	xy := make(plotter.XYs, 0, len(r.History))
	for i, v := range r.History {
		if v > 0 {
			xy = append(xy, plotter.XY{X: float64(i + 1), Y: v})
		}
	}
	if len(xy) == 0 {
		return fmt.Errorf("equilibrium: no convergence history to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Convergence (%v)", r.Status)
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Step norm"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	l, err := plotter.NewLine(xy)
	if err != nil {
		return fmt.Errorf("equilibrium: plotting convergence history: %v", err)
	}
	p.Add(l)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fileName); err != nil {
		return fmt.Errorf("equilibrium: saving convergence plot: %v", err)
	}
	return nil
}
