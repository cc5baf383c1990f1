package recommend

import (
	"fmt"
	"math"
	"strings"

	"github.com/rewired-gh/hawcbmd/internal/format"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// RuleKind is the closed set of validation tests the engine knows how to run.
type RuleKind int

const (
	RuleAICMissing RuleKind = iota
	RuleBMDMissing
	RuleBMDLMissing
	RuleBMDUMissing
	RuleVarianceType
	RuleVarianceFit
	RuleGOF
	RuleGOFCancer
	RuleBMDBMDLRatioFail
	RuleBMDBMDLRatioWarn
	RuleResidualOfInterest
	RuleWarnings
	RuleHighBMD
	RuleHighBMDL
	RuleLowBMDWarn
	RuleLowBMDLWarn
	RuleLowBMDFail
	RuleLowBMDLFail
	RuleControlResidual
	RuleControlStdevFit
	RuleDOFZero
)

var ruleNames = map[RuleKind]string{
	RuleAICMissing:         "aic_missing",
	RuleBMDMissing:         "bmd_missing",
	RuleBMDLMissing:        "bmdl_missing",
	RuleBMDUMissing:        "bmdu_missing",
	RuleVarianceType:       "variance_type",
	RuleVarianceFit:        "variance_fit",
	RuleGOF:                "gof",
	RuleGOFCancer:          "gof_cancer",
	RuleBMDBMDLRatioFail:   "bmd_bmdl_ratio_fail",
	RuleBMDBMDLRatioWarn:   "bmd_bmdl_ratio_warn",
	RuleResidualOfInterest: "roi_large",
	RuleWarnings:           "warnings",
	RuleHighBMD:            "high_bmd",
	RuleHighBMDL:           "high_bmdl",
	RuleLowBMDWarn:         "low_bmd_warn",
	RuleLowBMDLWarn:        "low_bmdl_warn",
	RuleLowBMDFail:         "low_bmd_fail",
	RuleLowBMDLFail:        "low_bmdl_fail",
	RuleControlResidual:    "control_residual",
	RuleControlStdevFit:    "control_stdev_fit",
	RuleDOFZero:            "dof_zero",
}

func (k RuleKind) String() string {
	if n, ok := ruleNames[k]; ok {
		return n
	}
	return fmt.Sprintf("rule(%d)", int(k))
}

// ParseRuleKind maps a rule name to its kind.
func ParseRuleKind(name string) (RuleKind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, v := range ruleNames {
		if v == n {
			return k, true
		}
	}
	return 0, false
}

// Dataset is the dose-response data a model was fitted to.
type Dataset struct {
	DataType models.DataType
	Doses    []float64
	Groups   []models.DoseGroup
}

// NewDataset builds a Dataset from an endpoint expressed in the given units.
func NewDataset(e *models.Endpoint, doseUnitsID int) Dataset {
	return Dataset{DataType: e.DataType, Doses: e.Doses(doseUnitsID), Groups: e.Groups}
}

func (d Dataset) maxDose() float64 {
	hi := math.NaN()
	for _, x := range d.Doses {
		if math.IsNaN(hi) || x > hi {
			hi = x
		}
	}
	return hi
}

// minPositiveDose is the lowest non-control dose.
func (d Dataset) minPositiveDose() float64 {
	lo := math.NaN()
	for _, x := range d.Doses {
		if x > 0 && (math.IsNaN(lo) || x < lo) {
			lo = x
		}
	}
	return lo
}

// Failure is the outcome of a failed rule.
type Failure struct {
	Bin   models.Bin
	Notes []string
}

func fail(rule models.LogicRule, notes ...string) *Failure {
	return &Failure{Bin: rule.FailureBin, Notes: notes}
}

// Evaluate runs one rule against a model. It returns nil when the model
// passes, or when the inputs the rule needs are absent.
func Evaluate(kind RuleKind, rule models.LogicRule, m models.Model, ds Dataset) *Failure {
	out := m.Output
	switch kind {
	case RuleAICMissing:
		return missing(rule, out.AIC, "AIC")
	case RuleBMDMissing:
		return missing(rule, out.BMD, "BMD")
	case RuleBMDLMissing:
		return missing(rule, out.BMDL, "BMDL")
	case RuleBMDUMissing:
		return missing(rule, out.BMDU, "BMDU")

	case RuleVarianceType:
		cv := m.Settings.ConstantVariance
		if ds.DataType != models.DataTypeContinuous || cv == nil || rule.Threshold == nil || !out.PValue2.Valid() {
			return nil
		}
		p2 := out.PValue2.Float()
		if *cv && p2 < *rule.Threshold {
			return fail(rule, fmt.Sprintf("Incorrect variance model (p-value 2 = %s < %s); constant variance selected", format.Float(p2), format.Float(*rule.Threshold)))
		}
		if !*cv && p2 > *rule.Threshold {
			return fail(rule, fmt.Sprintf("Incorrect variance model (p-value 2 = %s > %s); nonconstant variance selected", format.Float(p2), format.Float(*rule.Threshold)))
		}
		return nil

	case RuleVarianceFit:
		cv := m.Settings.ConstantVariance
		if ds.DataType != models.DataTypeContinuous || cv == nil || rule.Threshold == nil {
			return nil
		}
		p, label := out.PValue2, "p-value 2"
		if !*cv {
			p, label = out.PValue3, "p-value 3"
		}
		return below(rule, p, fmt.Sprintf("Variance model poorly fits dataset (%s", label))

	case RuleGOF, RuleGOFCancer:
		return below(rule, out.PValue4, "Goodness of fit p-value is less than threshold (")

	case RuleBMDBMDLRatioFail, RuleBMDBMDLRatioWarn:
		if !out.BMD.Valid() || !out.BMDL.Valid() || out.BMDL.Float() == 0 {
			return nil
		}
		return above(rule, out.BMD.Float()/out.BMDL.Float(), "BMD/BMDL ratio greater than threshold (")

	case RuleResidualOfInterest:
		if !out.ResidualOfInterest.Valid() {
			return nil
		}
		return above(rule, math.Abs(out.ResidualOfInterest.Float()), "Residual of interest greater than threshold (")

	case RuleWarnings:
		if len(out.Warnings) == 0 {
			return nil
		}
		notes := make([]string, 0, len(out.Warnings))
		for _, w := range out.Warnings {
			notes = append(notes, "Warning: "+w)
		}
		return fail(rule, notes...)

	case RuleHighBMD:
		return doseRatio(rule, out.BMD, ds.maxDose(), false, "BMD/high dose ratio greater than threshold (")
	case RuleHighBMDL:
		return doseRatio(rule, out.BMDL, ds.maxDose(), false, "BMDL/high dose ratio greater than threshold (")
	case RuleLowBMDWarn, RuleLowBMDFail:
		return doseRatio(rule, out.BMD, ds.minPositiveDose(), true, "Lowest dose/BMD ratio greater than threshold (")
	case RuleLowBMDLWarn, RuleLowBMDLFail:
		return doseRatio(rule, out.BMDL, ds.minPositiveDose(), true, "Lowest dose/BMDL ratio greater than threshold (")

	case RuleControlResidual:
		if len(out.FitResiduals) == 0 || !out.FitResiduals[0].Valid() {
			return nil
		}
		return above(rule, math.Abs(out.FitResiduals[0].Float()), "Residual at control greater than threshold (")

	case RuleControlStdevFit:
		if len(out.FitEstStdev) == 0 || len(out.FitStdev) == 0 {
			return nil
		}
		est, obs := out.FitEstStdev[0], out.FitStdev[0]
		if !est.Valid() || !obs.Valid() || est.Float() <= 0 || obs.Float() <= 0 {
			return nil
		}
		ratio := math.Max(est.Float(), obs.Float()) / math.Min(est.Float(), obs.Float())
		return above(rule, ratio, "Modeled/actual stdev ratio at control greater than threshold (")

	case RuleDOFZero:
		if out.DF.Valid() && out.DF.Float() == 0 {
			return fail(rule, "Zero degrees of freedom; saturated model")
		}
		return nil
	}
	return nil
}

func missing(rule models.LogicRule, v models.Number, label string) *Failure {
	if v.Valid() {
		return nil
	}
	return fail(rule, label+" not estimated")
}

// below fails when v < threshold. prefix ends in an opening parenthesis or a
// label, and the note is closed with "value < threshold)".
func below(rule models.LogicRule, v models.Number, prefix string) *Failure {
	if rule.Threshold == nil || !v.Valid() {
		return nil
	}
	if v.Float() < *rule.Threshold {
		return fail(rule, fmt.Sprintf("%s%s%s < %s)", prefix, sep(prefix), format.Float(v.Float()), format.Float(*rule.Threshold)))
	}
	return nil
}

// above fails when v > threshold.
func above(rule models.LogicRule, v float64, prefix string) *Failure {
	if rule.Threshold == nil || !models.Valid(v) {
		return nil
	}
	if v > *rule.Threshold {
		return fail(rule, fmt.Sprintf("%s%s > %s)", prefix, format.Float(v), format.Float(*rule.Threshold)))
	}
	return nil
}

func sep(prefix string) string {
	if strings.HasSuffix(prefix, "(") {
		return ""
	}
	return " = "
}

// doseRatio compares a BMD-type value against a reference dose. With
// inverted the ratio is dose/value, otherwise value/dose.
func doseRatio(rule models.LogicRule, v models.Number, dose float64, inverted bool, prefix string) *Failure {
	if !v.Valid() || v.Float() <= 0 || !models.Valid(dose) || dose <= 0 {
		return nil
	}
	ratio := v.Float() / dose
	if inverted {
		ratio = dose / v.Float()
	}
	return above(rule, ratio, prefix)
}

func threshold(v float64) *float64 { return &v }

// DefaultRules returns the standard rule set used when a session has none.
func DefaultRules() []models.LogicRule {
	all := func(r models.LogicRule) models.LogicRule {
		r.ContinuousOn, r.DichotomousOn, r.CancerDichotomousOn = true, true, true
		return r
	}
	continuous := func(r models.LogicRule) models.LogicRule {
		r.ContinuousOn = true
		return r
	}
	return []models.LogicRule{
		all(models.LogicRule{Name: "bmd_missing", Description: "BMD not estimated", FailureBin: models.BinFailure}),
		all(models.LogicRule{Name: "bmdl_missing", Description: "BMDL not estimated", FailureBin: models.BinFailure}),
		all(models.LogicRule{Name: "bmdu_missing", Description: "BMDU not estimated", FailureBin: models.BinFailure}),
		all(models.LogicRule{Name: "aic_missing", Description: "AIC not estimated", FailureBin: models.BinFailure}),
		continuous(models.LogicRule{Name: "variance_type", Description: "Incorrect variance model", FailureBin: models.BinFailure, Threshold: threshold(0.1)}),
		continuous(models.LogicRule{Name: "variance_fit", Description: "Variance model poor fit", FailureBin: models.BinFailure, Threshold: threshold(0.1)}),
		{Name: "gof", Description: "Goodness of fit p-test", FailureBin: models.BinFailure, Threshold: threshold(0.1), ContinuousOn: true, DichotomousOn: true},
		{Name: "gof_cancer", Description: "Goodness of fit p-test (cancer)", FailureBin: models.BinFailure, Threshold: threshold(0.05), CancerDichotomousOn: true},
		all(models.LogicRule{Name: "bmd_bmdl_ratio_fail", Description: "Ratio of BMD/BMDL (serious)", FailureBin: models.BinFailure, Threshold: threshold(20)}),
		all(models.LogicRule{Name: "bmd_bmdl_ratio_warn", Description: "Ratio of BMD/BMDL (caution)", FailureBin: models.BinWarning, Threshold: threshold(5)}),
		all(models.LogicRule{Name: "roi_large", Description: "Abs(Residual of interest) too large", FailureBin: models.BinWarning, Threshold: threshold(2)}),
		all(models.LogicRule{Name: "warnings", Description: "BMDS output warnings", FailureBin: models.BinWarning}),
		all(models.LogicRule{Name: "high_bmd", Description: "BMD higher than highest dose", FailureBin: models.BinWarning, Threshold: threshold(1)}),
		all(models.LogicRule{Name: "high_bmdl", Description: "BMDL higher than highest dose", FailureBin: models.BinWarning, Threshold: threshold(1)}),
		all(models.LogicRule{Name: "low_bmd_warn", Description: "BMD lower than lowest dose (warning)", FailureBin: models.BinWarning, Threshold: threshold(3)}),
		all(models.LogicRule{Name: "low_bmdl_warn", Description: "BMDL lower than lowest dose (warning)", FailureBin: models.BinWarning, Threshold: threshold(3)}),
		all(models.LogicRule{Name: "low_bmd_fail", Description: "BMD lower than lowest dose (failure)", FailureBin: models.BinFailure, Threshold: threshold(10)}),
		all(models.LogicRule{Name: "low_bmdl_fail", Description: "BMDL lower than lowest dose (failure)", FailureBin: models.BinFailure, Threshold: threshold(10)}),
		continuous(models.LogicRule{Name: "control_residual", Description: "Abs(Residual at control) too large", FailureBin: models.BinWarning, Threshold: threshold(2)}),
		continuous(models.LogicRule{Name: "control_stdev_fit", Description: "Poor control dose std. dev.", FailureBin: models.BinWarning, Threshold: threshold(1.5)}),
		all(models.LogicRule{Name: "dof_zero", Description: "Zero degrees of freedom", FailureBin: models.BinWarning}),
	}
}
