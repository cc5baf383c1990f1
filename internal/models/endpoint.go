// Package models defines the domain entities exchanged with the HAWC API:
// endpoints and their dose groups, BMD sessions, candidate models with their
// fitted outputs, and the recommendation logic rules applied to them.
//
// Numeric fields produced by the fitting backend use Number so that nulls,
// strings and sentinel values survive decoding and can be classified later.
package models

import (
	"errors"
	"fmt"
	"math"
)

// DataType is the HAWC endpoint data type.
type DataType string

const (
	DataTypeContinuous        DataType = "C"
	DataTypeDichotomous       DataType = "D"
	DataTypeDichotomousCancer DataType = "DC"
	DataTypePercentDiff       DataType = "P"
	DataTypeNotReported       DataType = "NR"
)

// IsDichotomous reports whether responses are incidences.
func (d DataType) IsDichotomous() bool {
	return d == DataTypeDichotomous || d == DataTypeDichotomousCancer
}

// DoseUnits identifies a unit system doses can be expressed in.
type DoseUnits struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DoseSet holds one dose value per group, in a single unit system.
type DoseSet struct {
	Units  DoseUnits `json:"dose_units"`
	Values []float64 `json:"values"`
}

// DoseGroup is one experimental dose level and its observed response.
type DoseGroup struct {
	DoseGroupID       int      `json:"dose_group_id"`
	Dose              float64  `json:"dose"`
	N                 *int     `json:"n"`
	Incidence         *float64 `json:"incidence"`
	Response          *float64 `json:"response"`
	Variance          *float64 `json:"variance"`
	Stdev             *float64 `json:"stdev"`
	LowerCI           *float64 `json:"lower_ci"`
	UpperCI           *float64 `json:"upper_ci"`
	Significant       bool     `json:"significant"`
	SignificanceLevel *float64 `json:"significance_level"`
	IsReported        bool     `json:"isReported"`
}

// Validate checks that all dose group fields are valid
func (g *DoseGroup) Validate() error {
	if g.Dose < 0 || math.IsNaN(g.Dose) {
		return errors.New("dose must be a non-negative number")
	}
	if g.N != nil && *g.N < 0 {
		return errors.New("n must not be negative")
	}
	if g.Incidence != nil && g.N != nil && *g.Incidence > float64(*g.N) {
		return errors.New("incidence must not exceed n")
	}
	if g.LowerCI != nil && g.UpperCI != nil && *g.LowerCI > *g.UpperCI {
		return errors.New("lower_ci must be <= upper_ci")
	}
	return nil
}

// Value returns the plotted response: incidence proportion for dichotomous
// data, response otherwise. ok is false when the value is missing.
func (g *DoseGroup) Value(dt DataType) (v float64, ok bool) {
	if dt.IsDichotomous() {
		if g.Incidence == nil || g.N == nil || *g.N == 0 {
			return 0, false
		}
		return *g.Incidence / float64(*g.N), true
	}
	if g.Response == nil {
		return 0, false
	}
	return *g.Response, true
}

// Bounds returns the whisker extent for the group. Confidence bounds are used
// when present; otherwise continuous groups fall back to ±1 standard deviation.
func (g *DoseGroup) Bounds(dt DataType) (lo, hi float64, ok bool) {
	if g.LowerCI != nil && g.UpperCI != nil {
		return *g.LowerCI, *g.UpperCI, true
	}
	if dt.IsDichotomous() {
		return 0, 0, false
	}
	v, ok := g.Value(dt)
	if !ok {
		return 0, 0, false
	}
	sd := 0.0
	switch {
	case g.Stdev != nil:
		sd = *g.Stdev
	case g.Variance != nil && *g.Variance >= 0:
		sd = math.Sqrt(*g.Variance)
	default:
		return 0, 0, false
	}
	return v - sd, v + sd, true
}

// SelectedModel is the model chosen for an endpoint, with free-text notes.
type SelectedModel struct {
	Model *int   `json:"model"`
	Notes string `json:"notes"`
}

// Endpoint is a HAWC animal-bioassay endpoint with its dose groups.
type Endpoint struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	DataType      DataType       `json:"data_type"`
	ResponseUnits string         `json:"response_units"`
	Groups        []DoseGroup    `json:"groups"`
	DoseSets      []DoseSet      `json:"dose_sets"`
	DefaultUnits  int            `json:"default_dose_units"`
	BMD           *SelectedModel `json:"BMD"`
}

// Validate checks group ordering and dose set alignment.
func (e *Endpoint) Validate() error {
	if e.ID == 0 {
		return errors.New("endpoint ID must not be zero")
	}
	for i := range e.Groups {
		if err := e.Groups[i].Validate(); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
		if i > 0 && e.Groups[i].Dose < e.Groups[i-1].Dose {
			return errors.New("groups must be ordered by ascending dose")
		}
	}
	for _, ds := range e.DoseSets {
		if len(ds.Values) != len(e.Groups) {
			return fmt.Errorf("dose set for units %d has %d values, want %d", ds.Units.ID, len(ds.Values), len(e.Groups))
		}
	}
	return nil
}

// Doses returns group doses expressed in the given units. The group's own
// dose is used for the default units or when no matching dose set exists.
func (e *Endpoint) Doses(unitsID int) []float64 {
	for _, ds := range e.DoseSets {
		if ds.Units.ID == unitsID && len(ds.Values) == len(e.Groups) {
			out := make([]float64, len(ds.Values))
			copy(out, ds.Values)
			return out
		}
	}
	out := make([]float64, len(e.Groups))
	for i, g := range e.Groups {
		out[i] = g.Dose
	}
	return out
}

// UnitsIDs lists the dose units the endpoint can be displayed in.
func (e *Endpoint) UnitsIDs() []int {
	ids := []int{}
	seen := map[int]bool{}
	if e.DefaultUnits != 0 {
		ids = append(ids, e.DefaultUnits)
		seen[e.DefaultUnits] = true
	}
	for _, ds := range e.DoseSets {
		if !seen[ds.Units.ID] {
			ids = append(ids, ds.Units.ID)
			seen[ds.Units.ID] = true
		}
	}
	return ids
}

// UnitsName returns the display name for a dose units id.
func (e *Endpoint) UnitsName(unitsID int) string {
	for _, ds := range e.DoseSets {
		if ds.Units.ID == unitsID {
			return ds.Units.Name
		}
	}
	return ""
}
