package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Bin is the severity a candidate model is classified into.
type Bin int

const (
	BinPass    Bin = 0
	BinWarning Bin = 1
	BinFailure Bin = 2
)

func (b Bin) String() string {
	switch b {
	case BinPass:
		return "pass"
	case BinWarning:
		return "warning"
	case BinFailure:
		return "failure"
	default:
		return fmt.Sprintf("bin(%d)", int(b))
	}
}

// ParameterEstimate is one fitted parameter as reported by the backend.
type ParameterEstimate struct {
	Estimate Number `json:"estimate"`
}

// ModelOutput holds the numeric results of one fitted candidate model.
// It is produced by the fitting backend and treated as read-only.
type ModelOutput struct {
	BMD                Number                       `json:"BMD"`
	BMDL               Number                       `json:"BMDL"`
	BMDU               Number                       `json:"BMDU"`
	AIC                Number                       `json:"AIC"`
	PValue1            Number                       `json:"p_value1"`
	PValue2            Number                       `json:"p_value2"`
	PValue3            Number                       `json:"p_value3"`
	PValue4            Number                       `json:"p_value4"`
	DF                 Number                       `json:"df"`
	ResidualOfInterest Number                       `json:"residual_of_interest"`
	FitResiduals       []Number                     `json:"fit_residuals"`
	FitEstStdev        []Number                     `json:"fit_est_stdev"`
	FitStdev           []Number                     `json:"fit_stdev"`
	FitEstimated       []Number                     `json:"fit_estimated"`
	Warnings           []string                     `json:"warnings"`
	Parameters         map[string]ParameterEstimate `json:"parameters"`
}

// EmptyOutput returns an output with every scalar marked as not computed.
func EmptyOutput() ModelOutput {
	return ModelOutput{
		BMD:                NaN(),
		BMDL:               NaN(),
		BMDU:               NaN(),
		AIC:                NaN(),
		PValue1:            NaN(),
		PValue2:            NaN(),
		PValue3:            NaN(),
		PValue4:            NaN(),
		DF:                 NaN(),
		ResidualOfInterest: NaN(),
	}
}

// UnmarshalJSON keeps absent scalars invalid instead of zero.
func (o *ModelOutput) UnmarshalJSON(data []byte) error {
	type plain ModelOutput
	out := plain(EmptyOutput())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*o = ModelOutput(out)
	return nil
}

// ModelSettings carries the subset of model settings the logic rules inspect.
type ModelSettings struct {
	ConstantVariance *bool `json:"constant_variance,omitempty"`
	Degree           int   `json:"degree,omitempty"`
}

// Recommendation is the derived classification of a candidate model.
type Recommendation struct {
	LogicBin            Bin              `json:"logic_bin"`
	LogicNotes          map[Bin][]string `json:"logic_notes"`
	Recommended         bool             `json:"recommended"`
	RecommendedVariable string           `json:"recommended_variable"`
}

// Reset restores the innocent-until-proven-guilty defaults.
func (r *Recommendation) Reset() {
	r.LogicBin = BinPass
	r.LogicNotes = map[Bin][]string{BinPass: {}, BinWarning: {}, BinFailure: {}}
	r.Recommended = false
	r.RecommendedVariable = ""
}

// Model is one candidate statistical model fitted for a BMR.
type Model struct {
	ID             int            `json:"id"`
	ModelIndex     int            `json:"model_index"`
	BMRIndex       int            `json:"bmr_index"`
	Name           string         `json:"name"`
	Settings       ModelSettings  `json:"settings"`
	Output         ModelOutput    `json:"output"`
	Recommendation Recommendation `json:"recommendation"`
}

// Clone returns a deep copy of the mutable parts of m.
func (m Model) Clone() Model {
	c := m
	c.Recommendation.LogicNotes = make(map[Bin][]string, len(m.Recommendation.LogicNotes))
	for k, v := range m.Recommendation.LogicNotes {
		c.Recommendation.LogicNotes[k] = append([]string(nil), v...)
	}
	return c
}

// LogicRule is a named validation test and the data types it applies to.
type LogicRule struct {
	Name                string   `json:"name" mapstructure:"name" yaml:"name"`
	Description         string   `json:"description,omitempty" mapstructure:"description" yaml:"description,omitempty"`
	FailureBin          Bin      `json:"failure_bin" mapstructure:"failure_bin" yaml:"failure_bin"`
	Threshold           *float64 `json:"threshold" mapstructure:"threshold" yaml:"threshold,omitempty"`
	ContinuousOn        bool     `json:"continuous_on" mapstructure:"continuous_on" yaml:"continuous_on"`
	DichotomousOn       bool     `json:"dichotomous_on" mapstructure:"dichotomous_on" yaml:"dichotomous_on"`
	CancerDichotomousOn bool     `json:"cancer_dichotomous_on" mapstructure:"cancer_dichotomous_on" yaml:"cancer_dichotomous_on"`
}

// ErrUnknownDataType is returned when rules are selected for a data type
// the recommendation logic does not know.
var ErrUnknownDataType = errors.New("unknown data type for recommendation logic")

// AppliesTo reports whether the rule is enabled for the data type.
func (r LogicRule) AppliesTo(dt DataType) (bool, error) {
	switch dt {
	case DataTypeContinuous:
		return r.ContinuousOn, nil
	case DataTypeDichotomous:
		return r.DichotomousOn, nil
	case DataTypeDichotomousCancer:
		return r.CancerDichotomousOn, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
}

// BMR is one benchmark response definition.
type BMR struct {
	Type            string  `json:"type"`
	Value           float64 `json:"value"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// Session is a BMD modeling session for one endpoint.
type Session struct {
	ID               int            `json:"id"`
	EndpointID       int            `json:"endpoint"`
	DoseUnits        int            `json:"dose_units"`
	Models           []Model        `json:"models"`
	BMRs             []BMR          `json:"bmrs"`
	AllModelOptions  []string       `json:"allModelOptions"`
	AllBMROptions    []string       `json:"allBmrOptions"`
	Logic            []LogicRule    `json:"logic"`
	SelectedModel    *SelectedModel `json:"selected_model"`
	IsFinished       bool           `json:"is_finished"`
	URL              string         `json:"url"`
	ExecuteURL       string         `json:"url_execute"`
	ExecuteStatusURL string         `json:"url_execute_status"`
	SelectedModelURL string         `json:"url_selected_model"`
}

// Model returns the model with the given id.
func (s *Session) Model(id int) (*Model, bool) {
	for i := range s.Models {
		if s.Models[i].ID == id {
			return &s.Models[i], true
		}
	}
	return nil, false
}

// ExecuteStatus is the polling response for an execution request.
type ExecuteStatus struct {
	Finished bool `json:"finished"`
}
