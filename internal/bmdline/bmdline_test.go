package bmdline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/hawcbmd/internal/formula"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

func hillModel() models.Model {
	out := models.EmptyOutput()
	out.BMD = 15
	out.BMDL = 10
	out.Parameters = map[string]models.ParameterEstimate{
		"intercept": {Estimate: 5},
		"v":         {Estimate: 10},
		"n":         {Estimate: 2},
		"k":         {Estimate: 20},
	}
	out.FitEstimated = []models.Number{5, 5.6, 7, 12, 14}
	return models.Model{ID: 42, Name: "Hill", Output: out}
}

func TestHillLineEndToEnd(t *testing.T) {
	line, err := New(hillModel(), 3, Palette(0))
	require.NoError(t, err)

	assert.Equal(t, "model-42", line.ID)
	assert.Equal(t, 3, line.DoseUnitsID)
	assert.Equal(t, 1.0, line.Params()[formula.IncreasingKey])

	xs := make([]float64, 0, 21)
	for x := 0.0; x <= 100; x += 5 {
		xs = append(xs, x)
	}
	pts := line.Data(xs)
	require.Len(t, pts, 21)
	assert.Equal(t, 1e-8, pts[0].X)
	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i].Y, pts[i-1].Y, "non-decreasing at %v", pts[i].X)
	}

	require.NotNil(t, line.BMD)
	require.NotNil(t, line.BMDL)
	assert.Equal(t, 15.0, line.BMD.X)
	assert.InDelta(t, 5+10*225.0/(400+225), line.BMD.Y, 1e-9)
	assert.Equal(t, 10.0, line.BMDL.X)
}

func TestDataIsRestartable(t *testing.T) {
	line, err := New(hillModel(), 1, "#000")
	require.NoError(t, err)

	first := line.Data([]float64{0, 10, 20})
	second := line.Data([]float64{5})
	again := line.Data([]float64{0, 10, 20})

	assert.Len(t, second, 1)
	assert.Equal(t, first, again)
}

func TestDataDropsNegativeDoses(t *testing.T) {
	line, err := New(hillModel(), 1, "#000")
	require.NoError(t, err)

	pts := line.Data([]float64{-5, 0, 5, math.NaN()})
	require.Len(t, pts, 2)
	assert.Equal(t, formula.Epsilon, pts[0].X)
	assert.Equal(t, 5.0, pts[1].X)
}

func TestLogFamiliesFiniteFromZero(t *testing.T) {
	for _, name := range []string{"LogLogistic", "LogProbit", "Dichotomous-Hill"} {
		out := models.EmptyOutput()
		out.Parameters = map[string]models.ParameterEstimate{
			"background": {Estimate: 0.05},
			"intercept":  {Estimate: -3},
			"slope":      {Estimate: 1.2},
			"v":          {Estimate: 0.9},
			"g":          {Estimate: 0.1},
		}
		line, err := New(models.Model{ID: 1, Name: name, Output: out}, 1, "#000")
		require.NoError(t, err)
		for _, p := range line.Data([]float64{0, 1, 10, 100}) {
			assert.False(t, math.IsNaN(p.Y) || math.IsInf(p.Y, 0), "%s at %v = %v", name, p.X, p.Y)
		}
	}
}

func TestLocate(t *testing.T) {
	line, err := New(hillModel(), 1, "#000")
	require.NoError(t, err)

	assert.Nil(t, line.Locate(0))
	assert.Nil(t, line.Locate(-3))
	assert.Nil(t, line.Locate(math.NaN()))
	assert.Nil(t, line.Locate(-999))
	assert.NotNil(t, line.Locate(1))
}

func TestMissingBMDOmitsMarker(t *testing.T) {
	m := hillModel()
	m.Output.BMDL = models.NaN()
	line, err := New(m, 1, "#000")
	require.NoError(t, err)
	assert.NotNil(t, line.BMD)
	assert.Nil(t, line.BMDL)
}

func TestUnknownFamily(t *testing.T) {
	_, err := New(models.Model{ID: 9, Name: "Spline", Output: models.EmptyOutput()}, 1, "#000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, formula.ErrUnknownFamily))
}

func TestSamples(t *testing.T) {
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, Samples(0, 100, 5, false))

	logs := Samples(1, 1000, 4, true)
	require.Len(t, logs, 4)
	assert.InDelta(t, 1, logs[0], 1e-9)
	assert.InDelta(t, 10, logs[1], 1e-9)
	assert.InDelta(t, 1000, logs[3], 1e-9)

	assert.InDelta(t, 0.1, Samples(0, 100, 3, true)[0], 1e-12)
	assert.Equal(t, []float64{5}, Samples(5, 5, 10, false))
}

func TestPalette(t *testing.T) {
	assert.Equal(t, Palette(0), Palette(10))
	assert.NotEqual(t, Palette(0), Palette(1))
}
