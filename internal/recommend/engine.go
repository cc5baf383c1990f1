// Package recommend classifies candidate BMD models into pass, warning and
// failure bins and picks a recommended model for every benchmark response.
package recommend

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// SufficientlyCloseBMDL is the max/min BMDL ratio at or below which the
// passing models are considered equivalent and AIC decides.
const SufficientlyCloseBMDL = 3.0

const (
	VariableAIC  = "AIC"
	VariableBMDL = "BMDL"
)

// Engine applies logic rules and the per-BMR selection policy.
type Engine struct {
	sufficientlyClose float64
}

// New creates an engine with the standard BMDL closeness ratio.
func New() *Engine {
	return &Engine{sufficientlyClose: SufficientlyCloseBMDL}
}

type selectedRule struct {
	kind RuleKind
	rule models.LogicRule
}

// SelectRules filters rules down to those enabled for the data type. Rules
// with a name the engine does not know are skipped.
func SelectRules(rules []models.LogicRule, dt models.DataType) ([]models.LogicRule, error) {
	sel, err := selectRules(rules, dt)
	if err != nil {
		return nil, err
	}
	out := make([]models.LogicRule, 0, len(sel))
	for _, s := range sel {
		out = append(out, s.rule)
	}
	return out, nil
}

func selectRules(rules []models.LogicRule, dt models.DataType) ([]selectedRule, error) {
	out := make([]selectedRule, 0, len(rules))
	for _, r := range rules {
		on, err := r.AppliesTo(dt)
		if err != nil {
			return nil, eris.Wrap(err, "recommend: select rules")
		}
		if !on {
			continue
		}
		kind, ok := ParseRuleKind(r.Name)
		if !ok {
			logger.Warn("Skipping unknown logic rule %q", r.Name)
			continue
		}
		out = append(out, selectedRule{kind: kind, rule: r})
	}
	return out, nil
}

// Recommend scores every candidate and flags the recommended model in each
// BMR group. The input slice is not modified; annotated copies are returned
// in the same order. The only error is an unrecognized data type.
func (e *Engine) Recommend(ds Dataset, candidates []models.Model, rules []models.LogicRule) ([]models.Model, error) {
	sel, err := selectRules(rules, ds.DataType)
	if err != nil {
		return nil, err
	}

	out := make([]models.Model, len(candidates))
	for i, c := range candidates {
		m := c.Clone()
		m.Recommendation.Reset()
		for _, s := range sel {
			f := Evaluate(s.kind, s.rule, m, ds)
			if f == nil {
				continue
			}
			if f.Bin > m.Recommendation.LogicBin {
				m.Recommendation.LogicBin = f.Bin
			}
			m.Recommendation.LogicNotes[f.Bin] = append(m.Recommendation.LogicNotes[f.Bin], f.Notes...)
		}
		out[i] = m
	}

	for _, idx := range groupByBMR(out) {
		e.selectBest(out, idx)
	}

	logger.Debug("Scored %d models against %d rules", len(out), len(sel))
	return out, nil
}

// groupByBMR returns model indices per BMR, in order of first appearance.
func groupByBMR(ms []models.Model) [][]int {
	var order []int
	groups := make(map[int][]int)
	for i, m := range ms {
		if _, ok := groups[m.BMRIndex]; !ok {
			order = append(order, m.BMRIndex)
		}
		groups[m.BMRIndex] = append(groups[m.BMRIndex], i)
	}
	out := make([][]int, 0, len(order))
	for _, b := range order {
		out = append(out, groups[b])
	}
	return out
}

func (e *Engine) selectBest(ms []models.Model, idx []int) {
	var passing []int
	for _, i := range idx {
		if ms[i].Recommendation.LogicBin == models.BinPass {
			passing = append(passing, i)
		}
	}
	if len(passing) == 0 {
		return
	}

	minBMDL, maxBMDL := math.Inf(1), math.Inf(-1)
	for _, i := range passing {
		v := ms[i].Output.BMDL.Float()
		if !ms[i].Output.BMDL.Valid() {
			return
		}
		minBMDL = math.Min(minBMDL, v)
		maxBMDL = math.Max(maxBMDL, v)
	}
	ratio := maxBMDL / minBMDL
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return
	}

	variable := VariableBMDL
	value := func(m models.Model) models.Number { return m.Output.BMDL }
	if ratio <= e.sufficientlyClose {
		variable = VariableAIC
		value = func(m models.Model) models.Number { return m.Output.AIC }
	}

	best := math.Inf(1)
	for _, i := range passing {
		if v := value(ms[i]); v.Valid() && v.Float() < best {
			best = v.Float()
		}
	}
	if math.IsInf(best, 1) {
		return
	}
	for _, i := range passing {
		if v := value(ms[i]); v.Valid() && v.Float() == best {
			ms[i].Recommendation.Recommended = true
			ms[i].Recommendation.RecommendedVariable = variable
		}
	}
}

// Summary condenses the result for one BMR group.
type Summary struct {
	BMRIndex    int                `json:"bmr_index" yaml:"bmr_index"`
	Counts      map[models.Bin]int `json:"counts" yaml:"counts"`
	Recommended []int              `json:"recommended" yaml:"recommended"`
	Variable    string             `json:"recommended_variable" yaml:"recommended_variable"`
}

// Summarize groups annotated models by BMR, sorted by BMR index.
func Summarize(ms []models.Model) []Summary {
	byBMR := make(map[int]*Summary)
	for _, m := range ms {
		s, ok := byBMR[m.BMRIndex]
		if !ok {
			s = &Summary{
				BMRIndex: m.BMRIndex,
				Counts:   map[models.Bin]int{models.BinPass: 0, models.BinWarning: 0, models.BinFailure: 0},
			}
			byBMR[m.BMRIndex] = s
		}
		s.Counts[m.Recommendation.LogicBin]++
		if m.Recommendation.Recommended {
			s.Recommended = append(s.Recommended, m.ID)
			s.Variable = m.Recommendation.RecommendedVariable
		}
	}
	out := make([]Summary, 0, len(byBMR))
	for _, s := range byBMR {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BMRIndex < out[j].BMRIndex })
	return out
}

// Recommended returns the recommended models, in input order.
func Recommended(ms []models.Model) []models.Model {
	var out []models.Model
	for _, m := range ms {
		if m.Recommendation.Recommended {
			out = append(out, m)
		}
	}
	return out
}
