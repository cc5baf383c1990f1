package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Sentinels used by the fitting backend for values it could not compute.
const (
	SentinelNotComputed  = -999.0
	SentinelNotEstimated = -9999.0
)

// Number is a float64 decoded leniently from JSON. null, empty strings and
// non-numeric strings decode to NaN; numeric strings decode to their value.
// NaN and infinities encode as null.
type Number float64

// NaN returns an invalid Number.
func NaN() Number { return Number(math.NaN()) }

// Float returns the underlying value.
func (n Number) Float() float64 { return float64(n) }

// Valid reports whether n is finite and not a backend sentinel.
func (n Number) Valid() bool { return Valid(float64(n)) }

// Valid reports whether v is finite and not a backend sentinel.
func Valid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v != SentinelNotComputed && v != SentinelNotEstimated
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = NaN()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = NaN()
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = NaN()
			return nil
		}
		*n = Number(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = NaN()
		return nil
	}
	*n = Number(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// Floats converts a Number slice to float64.
func Floats(ns []Number) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = float64(n)
	}
	return out
}
