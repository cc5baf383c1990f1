// Package chart holds the dose-response chart state and renders it to SVG.
//
// State is immutable. Every transition returns the next state together with
// the Update describing which layers must be redrawn.
package chart

import (
	"time"

	"github.com/rewired-gh/hawcbmd/internal/bmdline"
	"github.com/rewired-gh/hawcbmd/internal/ordered"
)

// DefaultTransition is the animation length of a redraw.
const DefaultTransition = 1000 * time.Millisecond

// Scale is an axis scale type.
type Scale int

const (
	ScaleLinear Scale = iota
	ScaleLog
)

func (s Scale) String() string {
	if s == ScaleLog {
		return "log"
	}
	return "linear"
}

// Layer is one independently redrawn part of the chart.
type Layer string

const (
	LayerErrorBars Layer = "errorbars"
	LayerPoints    Layer = "points"
	LayerXAxis     Layer = "x_axis"
	LayerYAxis     Layer = "y_axis"
	LayerGridlines Layer = "gridlines"
	LayerBMD       Layer = "bmd"
)

// Update describes the redraw a transition requires.
type Update struct {
	Layers     []Layer
	Transition time.Duration
}

// Has reports whether the update redraws layer l.
func (u Update) Has(l Layer) bool {
	for _, x := range u.Layers {
		if x == l {
			return true
		}
	}
	return false
}

type lineList = ordered.List[string, *bmdline.Line]

func lineID(l *bmdline.Line) string { return l.ID }

// State is a snapshot of the chart's user-controlled settings.
type State struct {
	XScale      Scale
	YScale      Scale
	DoseUnitsID int
	Transition  time.Duration
	lines       lineList
}

// NewState returns a linear/linear chart in the given dose units.
func NewState(doseUnitsID int) State {
	lines, _ := ordered.New(lineID)
	return State{DoseUnitsID: doseUnitsID, Transition: DefaultTransition, lines: lines}
}

func (s State) update(layers ...Layer) Update {
	return Update{Layers: layers, Transition: s.Transition}
}

// Lines returns every BMD line in draw order, regardless of units.
func (s State) Lines() []*bmdline.Line { return s.lines.Items() }

// VisibleLines returns the lines expressed in the active dose units.
func (s State) VisibleLines() []*bmdline.Line {
	var out []*bmdline.Line
	for _, l := range s.lines.Items() {
		if l.DoseUnitsID == s.DoseUnitsID {
			out = append(out, l)
		}
	}
	return out
}

// YTickCount is the tick count hint for the response axis; 0 means automatic.
func (s State) YTickCount() int {
	if s.YScale == ScaleLog {
		return 1
	}
	return 0
}

func toggle(sc Scale) Scale {
	if sc == ScaleLog {
		return ScaleLinear
	}
	return ScaleLog
}

// ToggleXScale switches the dose axis between linear and log.
func (s State) ToggleXScale() (State, Update) {
	s.XScale = toggle(s.XScale)
	return s, s.update(LayerXAxis, LayerGridlines, LayerErrorBars, LayerPoints, LayerBMD)
}

// ToggleYScale switches the response axis between linear and log.
func (s State) ToggleYScale() (State, Update) {
	s.YScale = toggle(s.YScale)
	return s, s.update(LayerYAxis, LayerGridlines, LayerErrorBars, LayerPoints, LayerBMD)
}

// SetDoseUnits changes the displayed dose units. Setting the current units
// is a no-op with an empty update.
func (s State) SetDoseUnits(id int) (State, Update) {
	if id == s.DoseUnitsID {
		return s, s.update()
	}
	s.DoseUnitsID = id
	return s, s.update(LayerXAxis, LayerGridlines, LayerErrorBars, LayerPoints, LayerBMD)
}

// AddLine overlays a BMD line. Domains may change, so axes are redrawn too.
func (s State) AddLine(l *bmdline.Line) (State, Update, error) {
	lines, err := s.lines.Append(l)
	if err != nil {
		return s, Update{}, err
	}
	s.lines = lines
	return s, s.update(LayerBMD, LayerXAxis, LayerYAxis, LayerGridlines, LayerErrorBars, LayerPoints), nil
}

// RemoveLine drops a BMD line by id.
func (s State) RemoveLine(id string) (State, Update, error) {
	lines, err := s.lines.Remove(id)
	if err != nil {
		return s, Update{}, err
	}
	s.lines = lines
	return s, s.update(LayerBMD, LayerXAxis, LayerYAxis, LayerGridlines, LayerErrorBars, LayerPoints), nil
}

// MoveLine reorders a BMD line so it is drawn directly before another.
func (s State) MoveLine(id, before string) (State, Update, error) {
	lines, err := s.lines.MoveBefore(id, before)
	if err != nil {
		return s, Update{}, err
	}
	s.lines = lines
	return s, s.update(LayerBMD), nil
}
