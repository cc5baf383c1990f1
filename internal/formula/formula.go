// Package formula evaluates closed-form dose-response curves for the model
// families produced by the BMD fitting backend.
//
// Every Func is pure. Log-dose families (LogLogistic, LogProbit and
// Dichotomous-Hill) are undefined at dose 0; callers substitute Epsilon.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// Epsilon replaces a zero dose before evaluation.
const Epsilon = 1e-8

// Func evaluates a curve at dose x.
type Func func(x float64, p Params) float64

// Family names a dose-response model family.
type Family string

const (
	Linear           Family = "Linear"
	Polynomial       Family = "Polynomial"
	Power            Family = "Power"
	Hill             Family = "Hill"
	ExponentialM2    Family = "Exponential-M2"
	ExponentialM3    Family = "Exponential-M3"
	ExponentialM4    Family = "Exponential-M4"
	ExponentialM5    Family = "Exponential-M5"
	Gamma            Family = "Gamma"
	Logistic         Family = "Logistic"
	LogLogistic      Family = "LogLogistic"
	Probit           Family = "Probit"
	LogProbit        Family = "LogProbit"
	Weibull          Family = "Weibull"
	Multistage       Family = "Multistage"
	MultistageCancer Family = "Multistage-Cancer"
	DichotomousHill  Family = "Dichotomous-Hill"
	QuantalLinear    Family = "Quantal-Linear"
)

// ErrUnknownFamily is returned by Lookup for names with no formula.
var ErrUnknownFamily = errors.New("no formula for model family")

// Families lists every known family.
func Families() []Family {
	return []Family{
		Linear, Polynomial, Power, Hill,
		ExponentialM2, ExponentialM3, ExponentialM4, ExponentialM5,
		Gamma, Logistic, LogLogistic, Probit, LogProbit, Weibull,
		Multistage, MultistageCancer, DichotomousHill, QuantalLinear,
	}
}

// ParseFamily matches a model name case-insensitively.
func ParseFamily(name string) (Family, error) {
	n := strings.TrimSpace(name)
	for _, f := range Families() {
		if strings.EqualFold(string(f), n) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// LogDose reports whether the family takes log(dose).
func (f Family) LogDose() bool {
	return f == LogLogistic || f == LogProbit || f == DichotomousHill
}

// Lookup returns the formula for a model name.
func Lookup(name string) (Func, error) {
	f, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}
	return f.Func(), nil
}

// Func returns the family's formula.
func (f Family) Func() Func {
	switch f {
	case Linear:
		return linear
	case Polynomial:
		return polynomial
	case Power:
		return power
	case Hill:
		return hill
	case ExponentialM2:
		return exponentialM2
	case ExponentialM3:
		return exponentialM3
	case ExponentialM4:
		return exponentialM4
	case ExponentialM5:
		return exponentialM5
	case Gamma:
		return gamma
	case Logistic:
		return logistic
	case LogLogistic:
		return logLogistic
	case Probit:
		return probit
	case LogProbit:
		return logProbit
	case Weibull:
		return weibull
	case Multistage, MultistageCancer:
		return multistage
	case DichotomousHill:
		return dichotomousHill
	case QuantalLinear:
		return quantalLinear
	}
	return nil
}

func linear(x float64, p Params) float64 {
	return p.Get("beta_0") + p.Get("beta_1")*x
}

func polynomial(x float64, p Params) float64 {
	y := 0.0
	for _, t := range p.terms(0) {
		y += t.coef * math.Pow(x, float64(t.power))
	}
	return y
}

func power(x float64, p Params) float64 {
	return p.Get("control") + p.Get("slope")*math.Pow(x, p.Get("power"))
}

func hill(x float64, p Params) float64 {
	n := p.Get("n")
	xn := math.Pow(x, n)
	return p.Get("intercept") + p.Get("v")*xn/(math.Pow(p.Get("k"), n)+xn)
}

func exponentialM2(x float64, p Params) float64 {
	return p.Get("a") * math.Exp(p.Direction()*p.Get("b")*x)
}

func exponentialM3(x float64, p Params) float64 {
	return p.Get("a") * math.Exp(p.Direction()*math.Pow(p.Get("b")*x, p.Get("d")))
}

func exponentialM4(x float64, p Params) float64 {
	c := p.Get("c")
	return p.Get("a") * (c - (c-1)*math.Exp(-p.Get("b")*x))
}

func exponentialM5(x float64, p Params) float64 {
	c := p.Get("c")
	return p.Get("a") * (c - (c-1)*math.Exp(-math.Pow(p.Get("b")*x, p.Get("d"))))
}

// quantal applies the background-adjusted form bg + (1-bg)*f.
func quantal(p Params, f float64) float64 {
	bg := p.Get("background")
	return bg + (1-bg)*f
}

func gamma(x float64, p Params) float64 {
	shape := p.Get("power")
	z := p.Get("slope") * x
	if shape <= 0 || z < 0 || math.IsNaN(z) {
		return math.NaN()
	}
	return quantal(p, mathext.GammaIncReg(shape, z))
}

func logistic(x float64, p Params) float64 {
	return 1 / (1 + math.Exp(-p.Get("intercept")-p.Get("slope")*x))
}

func logLogistic(x float64, p Params) float64 {
	return quantal(p, 1/(1+math.Exp(-p.Get("intercept")-p.Get("slope")*math.Log(x))))
}

func probit(x float64, p Params) float64 {
	return distuv.UnitNormal.CDF(p.Get("intercept") + p.Get("slope")*x)
}

func logProbit(x float64, p Params) float64 {
	return quantal(p, distuv.UnitNormal.CDF(p.Get("intercept")+p.Get("slope")*math.Log(x)))
}

func weibull(x float64, p Params) float64 {
	return quantal(p, 1-math.Exp(-p.Get("slope")*math.Pow(x, p.Get("power"))))
}

func multistage(x float64, p Params) float64 {
	sum := 0.0
	for _, t := range p.terms(1) {
		sum += t.coef * math.Pow(x, float64(t.power))
	}
	return quantal(p, 1-math.Exp(-sum))
}

func dichotomousHill(x float64, p Params) float64 {
	v, g := p.Get("v"), p.Get("g")
	return v*g + (v-v*g)/(1+math.Exp(-p.Get("intercept")-p.Get("slope")*math.Log(x)))
}

func quantalLinear(x float64, p Params) float64 {
	return quantal(p, 1-math.Exp(-p.Get("slope")*x))
}
