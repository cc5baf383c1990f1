// Package format renders model-fit numbers for notes, tables and axis labels.
package format

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

// Placeholder is printed for values that were not computed.
const Placeholder = "-"

const (
	lowerBand = 0.001
	upperBand = 1e5
)

var printer = message.NewPrinter(language.English)

// Float formats v for display.
//
// Invalid values (NaN, infinities and the backend sentinels) print as "-",
// zero prints as "0", magnitudes strictly inside (0.001, 1e5) print as
// grouped decimals with at most three fraction digits, and everything else
// prints in exponential notation with two fraction digits ("1.00e+6").
func Float(v float64) string {
	if !models.Valid(v) {
		return Placeholder
	}
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs > lowerBand && abs < upperBand {
		return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
	}
	return Exponential(v, 2)
}

// Number formats a models.Number with Float.
func Number(n models.Number) string {
	return Float(n.Float())
}

// Exponential formats v as mantissa and unpadded signed exponent.
func Exponential(v float64, digits int) string {
	s := strconv.FormatFloat(v, 'e', digits, 64)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		return s
	}
	sign := "+"
	if e < 0 {
		sign = "-"
		e = -e
	}
	return mantissa + "e" + sign + strconv.Itoa(e)
}
