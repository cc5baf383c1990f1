package chart

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/hawcbmd/internal/bmdline"
	"github.com/rewired-gh/hawcbmd/internal/format"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// Padding is the fraction of the data extent added on each side of a domain.
const Padding = 0.05

// ErrNoData is returned when nothing in the active units can be plotted.
var ErrNoData = eris.New("chart: no plottable dose groups")

// Domain is a closed [Min, Max] interval in data coordinates.
type Domain struct {
	Min float64
	Max float64
}

// Domains are the padded x and y extents for the current state. XZero is
// the dose at which control groups are drawn; on a log axis it stands in
// for zero.
type Domains struct {
	X     Domain
	Y     Domain
	XZero float64
}

// Observation is one dose group ready to plot.
type Observation struct {
	Dose        float64
	Value       float64
	Lo, Hi      float64
	HasBounds   bool
	Significant bool
}

// Observations returns the reported groups of e in the state's dose units.
func Observations(e *models.Endpoint, s State) []Observation {
	doses := e.Doses(s.DoseUnitsID)
	var out []Observation
	for i := range e.Groups {
		g := &e.Groups[i]
		if !g.IsReported || i >= len(doses) {
			continue
		}
		v, ok := g.Value(e.DataType)
		if !ok || !models.Valid(v) {
			continue
		}
		o := Observation{Dose: doses[i], Value: v, Significant: g.Significant}
		o.Lo, o.Hi, o.HasBounds = g.Bounds(e.DataType)
		out = append(out, o)
	}
	return out
}

// ComputeDomains derives padded domains over the visible observations, their
// whiskers and the BMD/BMDL markers of visible lines.
func ComputeDomains(e *models.Endpoint, s State) (Domains, error) {
	obs := Observations(e, s)
	if len(obs) == 0 {
		return Domains{}, ErrNoData
	}

	xs := make([]float64, 0, len(obs))
	ys := make([]float64, 0, len(obs)*3)
	for _, o := range obs {
		xs = append(xs, o.Dose)
		ys = append(ys, o.Value)
		if o.HasBounds {
			ys = append(ys, o.Lo, o.Hi)
		}
	}
	for _, l := range s.VisibleLines() {
		for _, p := range []*bmdline.Point{l.BMD, l.BMDL} {
			if p != nil && models.Valid(p.Y) {
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
		}
	}

	var d Domains
	d.X, d.XZero = axisDomain(xs, s.XScale)
	d.Y, _ = axisDomain(ys, s.YScale)
	return d, nil
}

// axisDomain pads the extent of vs. On a log scale non-positive values are
// drawn at a tenth of the smallest positive value, which is also returned.
func axisDomain(vs []float64, sc Scale) (Domain, float64) {
	lo, hi := floats.Min(vs), floats.Max(vs)
	if sc == ScaleLog {
		minPos := math.Inf(1)
		for _, v := range vs {
			if v > 0 && v < minPos {
				minPos = v
			}
		}
		if math.IsInf(minPos, 1) {
			minPos = 1
		}
		zero := minPos / 10
		if lo <= 0 {
			lo = zero
		}
		if hi <= lo {
			hi = lo * 10
		}
		llo, lhi := math.Log10(lo), math.Log10(hi)
		pad := (lhi - llo) * Padding
		return Domain{Min: math.Pow(10, llo-pad), Max: math.Pow(10, lhi+pad)}, zero
	}
	span := hi - lo
	if span == 0 {
		span = math.Abs(hi)
		if span == 0 {
			span = 1
		}
	}
	pad := span * Padding
	return Domain{Min: lo - pad, Max: hi + pad}, 0
}

// Ticks returns decade ticks for a log axis, labelled with format.Float.
// The domain endpoints are added when fewer than two decades fall inside.
func Ticks(d Domain) []Tick {
	var out []Tick
	for e := math.Ceil(math.Log10(d.Min)); e <= math.Floor(math.Log10(d.Max)); e++ {
		v := math.Pow(10, e)
		out = append(out, Tick{Value: v, Label: format.Float(v)})
	}
	if len(out) < 2 {
		out = append([]Tick{{Value: d.Min, Label: format.Float(d.Min)}}, out...)
		out = append(out, Tick{Value: d.Max, Label: format.Float(d.Max)})
	}
	return out
}

// Tick is an axis tick in data coordinates.
type Tick struct {
	Value float64
	Label string
}
