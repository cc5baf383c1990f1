package formula

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

// IncreasingKey is the derived direction flag injected by Normalize.
const IncreasingKey = "isIncreasing"

// Params is a normalized parameter mapping keyed by lowercase parameter name.
type Params map[string]float64

// Get returns the named parameter, or 0 when it was not estimated.
func (p Params) Get(name string) float64 {
	return p[name]
}

// Direction returns +1 for an increasing curve and -1 otherwise.
func (p Params) Direction() float64 {
	if p[IncreasingKey] > 0 {
		return 1
	}
	return -1
}

type term struct {
	power int
	coef  float64
}

// terms collects beta coefficients named "beta_<i>" or "beta<i>" (the latter
// produced by stripping "Beta(i)"), ordered by power.
func (p Params) terms(minPower int) []term {
	var out []term
	for k, v := range p {
		if !strings.HasPrefix(k, "beta") {
			continue
		}
		suffix := strings.TrimPrefix(strings.TrimPrefix(k, "beta"), "_")
		i, err := strconv.Atoi(suffix)
		if err != nil || i < minPower {
			continue
		}
		out = append(out, term{power: i, coef: v})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].power < out[b].power })
	return out
}

// NormalizeKey lowercases a display name and strips parentheses.
func NormalizeKey(name string) string {
	return strings.NewReplacer("(", "", ")", "").Replace(strings.ToLower(name))
}

// Normalize converts server parameter estimates into Params and injects the
// isIncreasing flag: +1 when the last group estimate exceeds the first,
// -1 otherwise (ties and fewer than two estimates included).
func Normalize(raw map[string]models.ParameterEstimate, estimates []float64) Params {
	p := make(Params, len(raw)+1)
	for name, est := range raw {
		p[NormalizeKey(name)] = est.Estimate.Float()
	}
	p[IncreasingKey] = Increasing(estimates)
	return p
}

// Increasing returns +1 if the last estimate is greater than the first, else -1.
func Increasing(estimates []float64) float64 {
	if len(estimates) >= 2 && estimates[len(estimates)-1] > estimates[0] {
		return 1
	}
	return -1
}
