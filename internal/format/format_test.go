package format

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

func TestFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{-9999, "-"},
		{-999, "-"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
		{500, "500"},
		{12345.6789, "12,345.679"},
		{0.5, "0.5"},
		{-2.25, "-2.25"},
		{1e6, "1.00e+6"},
		{0.0001234, "1.23e-4"},
		{0.001, "1.00e-3"},
		{100000, "1.00e+5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Float(tt.in), "Float(%v)", tt.in)
	}
}

func TestFloatBandHasNoExponent(t *testing.T) {
	for _, v := range []float64{0.0011, 1, 42.5, 99999.9} {
		assert.False(t, strings.Contains(Float(v), "e"), "Float(%v) = %s", v, Float(v))
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "-", Number(models.NaN()))
	assert.Equal(t, "3.5", Number(models.Number(3.5)))
}

func TestExponential(t *testing.T) {
	assert.Equal(t, "-2.50e+10", Exponential(-2.5e10, 2))
	assert.Equal(t, "1.0e+0", Exponential(1, 1))
}
