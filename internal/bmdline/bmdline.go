// Package bmdline turns a fitted BMD model into a plottable curve with BMD
// and BMDL markers.
package bmdline

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/hawcbmd/internal/formula"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// Point is one (dose, response) pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is a renderable model curve. It holds no iteration state: Data can be
// called any number of times with different sample points.
type Line struct {
	ID          string         `json:"id"`
	DoseUnitsID int            `json:"dose_units_id"`
	Name        string         `json:"name"`
	Stroke      string         `json:"stroke"`
	BMD         *Point         `json:"bmd_line,omitempty"`
	BMDL        *Point         `json:"bmdl_line,omitempty"`
	ModelID     int            `json:"model_id"`
	Family      formula.Family `json:"family"`

	fn     formula.Func
	params formula.Params
}

// New builds a line for a fitted model. It fails with formula.ErrUnknownFamily
// when the model name has no formula.
func New(m models.Model, doseUnitsID int, stroke string) (*Line, error) {
	fam, err := formula.ParseFamily(m.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "bmdline: model %d", m.ID)
	}
	l := &Line{
		ID:          fmt.Sprintf("model-%d", m.ID),
		DoseUnitsID: doseUnitsID,
		Name:        m.Name,
		Stroke:      stroke,
		ModelID:     m.ID,
		Family:      fam,
		fn:          fam.Func(),
		params:      formula.Normalize(m.Output.Parameters, models.Floats(m.Output.FitEstimated)),
	}
	l.BMD = l.Locate(m.Output.BMD.Float())
	l.BMDL = l.Locate(m.Output.BMDL.Float())
	return l, nil
}

// Params returns a copy of the normalized parameters.
func (l *Line) Params() formula.Params {
	out := make(formula.Params, len(l.params))
	for k, v := range l.params {
		out[k] = v
	}
	return out
}

// Eval evaluates the curve at x, substituting Epsilon for zero.
func (l *Line) Eval(x float64) float64 {
	if x == 0 {
		x = formula.Epsilon
	}
	return l.fn(x, l.params)
}

// Data evaluates the curve at every non-negative x. Zero doses are replaced
// with formula.Epsilon so log-dose families stay finite.
func (l *Line) Data(xs []float64) []Point {
	out := make([]Point, 0, len(xs))
	for _, x := range xs {
		if x < 0 || math.IsNaN(x) {
			continue
		}
		if x == 0 {
			x = formula.Epsilon
		}
		out = append(out, Point{X: x, Y: l.fn(x, l.params)})
	}
	return out
}

// Locate evaluates the curve at a single dose. It returns nil when the dose
// is invalid or not positive.
func (l *Line) Locate(dose float64) *Point {
	if !models.Valid(dose) || dose <= 0 {
		return nil
	}
	return &Point{X: dose, Y: l.fn(dose, l.params)}
}

// Samples returns n points spanning [lo, hi]. With log spacing the points
// are geometric and a non-positive lo is replaced by hi/1000.
func Samples(lo, hi float64, n int, log bool) []float64 {
	if n < 2 || hi <= lo {
		return []float64{lo}
	}
	out := make([]float64, n)
	if log {
		if lo <= 0 {
			lo = hi / 1000
		}
		return floats.LogSpan(out, lo, hi)
	}
	return floats.Span(out, lo, hi)
}

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Palette returns the stroke colour for the i-th line.
func Palette(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}
