package chart

import (
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/rewired-gh/hawcbmd/internal/bmdline"
	"github.com/rewired-gh/hawcbmd/internal/format"
	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// Options controls the rendered image.
type Options struct {
	Title   string
	Width   int
	Height  int
	Samples int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 500
	}
	if o.Samples < 2 {
		o.Samples = 100
	}
	return o
}

var (
	colorObserved = drawing.ColorFromHex("333333")
	colorWhisker  = drawing.ColorFromHex("777777")
	colorGrid     = drawing.ColorFromHex("dddddd")
)

// pointStyle renders dots only, with no connecting line.
func pointStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    width,
		DotColor:    col,
	}
}

// projector maps data coordinates onto the chart's continuous axes. Log
// axes are drawn in log10 space with explicit decade ticks.
type projector struct {
	scale Scale
	zero  float64
}

func (p projector) project(v float64) (float64, bool) {
	if p.scale != ScaleLog {
		return v, models.Valid(v)
	}
	if v <= 0 {
		if p.zero <= 0 {
			return 0, false
		}
		v = p.zero
	}
	r := math.Log10(v)
	return r, !math.IsNaN(r) && !math.IsInf(r, 0)
}

func (p projector) axis(d Domain) (*chart.ContinuousRange, []chart.Tick) {
	if p.scale != ScaleLog {
		return &chart.ContinuousRange{Min: d.Min, Max: d.Max}, nil
	}
	var ticks []chart.Tick
	for _, t := range Ticks(d) {
		ticks = append(ticks, chart.Tick{Value: math.Log10(t.Value), Label: t.Label})
	}
	return &chart.ContinuousRange{Min: math.Log10(d.Min), Max: math.Log10(d.Max)}, ticks
}

func valueFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.Float(f)
	}
	return ""
}

// Render draws the endpoint's dose groups with whiskers, significance
// markers and every visible BMD line, and writes the chart as SVG.
func Render(w io.Writer, e *models.Endpoint, s State, opts Options) error {
	opts = opts.withDefaults()
	d, err := ComputeDomains(e, s)
	if err != nil {
		return err
	}
	px := projector{scale: s.XScale, zero: d.XZero}
	py := projector{scale: s.YScale}
	if s.YScale == ScaleLog {
		py.zero = d.Y.Min
	}

	series := observationSeries(Observations(e, s), px, py)
	series = append(series, lineSeries(s.VisibleLines(), d, px, py, opts.Samples)...)

	xRange, xTicks := px.axis(d.X)
	yRange, yTicks := py.axis(d.Y)
	grid := chart.Style{StrokeColor: colorGrid, StrokeWidth: 1}

	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:           e.UnitsName(s.DoseUnitsID),
			Range:          xRange,
			Ticks:          xTicks,
			ValueFormatter: valueFormatter,
			GridMajorStyle: grid,
		},
		YAxis: chart.YAxis{
			Name:           e.ResponseUnits,
			Range:          yRange,
			Ticks:          yTicks,
			ValueFormatter: valueFormatter,
			GridMajorStyle: grid,
		},
		Series: series,
	}
	if err := ch.Render(chart.SVG, w); err != nil {
		return eris.Wrap(err, "chart: render svg")
	}
	return nil
}

func observationSeries(obs []Observation, px, py projector) []chart.Series {
	var out []chart.Series
	points := chart.ContinuousSeries{Name: "Observed", Style: pointStyle(colorObserved, 5)}
	var stars []chart.Value2
	for _, o := range obs {
		x, okx := px.project(o.Dose)
		y, oky := py.project(o.Value)
		if !okx || !oky {
			continue
		}
		points.XValues = append(points.XValues, x)
		points.YValues = append(points.YValues, y)

		top := y
		if o.HasBounds {
			lo, oklo := py.project(o.Lo)
			hi, okhi := py.project(o.Hi)
			if oklo && okhi {
				out = append(out, chart.ContinuousSeries{
					XValues: []float64{x, x},
					YValues: []float64{lo, hi},
					Style:   chart.Style{StrokeColor: colorWhisker, StrokeWidth: 1},
				})
				top = hi
			}
		}
		if o.Significant {
			stars = append(stars, chart.Value2{XValue: x, YValue: top, Label: "*"})
		}
	}
	if len(points.XValues) > 0 {
		out = append(out, points)
	}
	if len(stars) > 0 {
		out = append(out, chart.AnnotationSeries{Name: "Significant", Annotations: stars})
	}
	return out
}

func lineSeries(lines []*bmdline.Line, d Domains, px, py projector, samples int) []chart.Series {
	var out []chart.Series
	lo := math.Max(d.X.Min, 0)
	xs := bmdline.Samples(lo, d.X.Max, samples, px.scale == ScaleLog)
	for _, l := range lines {
		col := drawing.ColorFromHex(strings.TrimPrefix(l.Stroke, "#"))
		curve := chart.ContinuousSeries{Name: l.Name, Style: chart.Style{StrokeColor: col, StrokeWidth: 2}}
		for _, p := range l.Data(xs) {
			x, okx := px.project(p.X)
			y, oky := py.project(p.Y)
			if !okx || !oky {
				continue
			}
			curve.XValues = append(curve.XValues, x)
			curve.YValues = append(curve.YValues, y)
		}
		if len(curve.XValues) < 2 {
			logger.Warn("Skipping BMD line %s: no plottable points", l.ID)
			continue
		}
		out = append(out, curve)

		markers := chart.ContinuousSeries{Name: l.Name + " BMD", Style: pointStyle(col, 7)}
		var labels []chart.Value2
		for _, m := range []struct {
			p     *bmdline.Point
			label string
		}{{l.BMD, "BMD"}, {l.BMDL, "BMDL"}} {
			if m.p == nil {
				continue
			}
			x, okx := px.project(m.p.X)
			y, oky := py.project(m.p.Y)
			if !okx || !oky {
				continue
			}
			markers.XValues = append(markers.XValues, x)
			markers.YValues = append(markers.YValues, y)
			labels = append(labels, chart.Value2{XValue: x, YValue: y, Label: m.label})
		}
		if len(markers.XValues) > 0 {
			out = append(out, markers, chart.AnnotationSeries{Name: l.Name + " markers", Annotations: labels})
		}
	}
	return out
}
