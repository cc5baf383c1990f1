package recommend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

func candidate(id, bmr int, bmdl, aic float64) models.Model {
	out := models.EmptyOutput()
	out.BMD = models.Number(bmdl * 1.5)
	out.BMDL = models.Number(bmdl)
	out.BMDU = models.Number(bmdl * 2)
	out.AIC = models.Number(aic)
	return models.Model{ID: id, BMRIndex: bmr, Name: "Linear", Output: out}
}

func continuous() Dataset {
	return Dataset{DataType: models.DataTypeContinuous, Doses: []float64{0, 10, 50, 150}}
}

func TestRecommendByAICWhenBMDLsClose(t *testing.T) {
	in := []models.Model{
		candidate(1, 0, 10, 100),
		candidate(2, 0, 12, 95),
		candidate(3, 0, 25, 110),
	}
	out, err := New().Recommend(continuous(), in, nil)
	require.NoError(t, err)

	rec := Recommended(out)
	require.Len(t, rec, 1)
	assert.Equal(t, 2, rec[0].ID)
	assert.Equal(t, VariableAIC, rec[0].Recommendation.RecommendedVariable)
}

func TestRecommendByBMDLWhenBMDLsSpread(t *testing.T) {
	in := []models.Model{
		candidate(1, 0, 10, 100),
		candidate(2, 0, 12, 95),
		candidate(3, 0, 50, 110),
	}
	out, err := New().Recommend(continuous(), in, nil)
	require.NoError(t, err)

	rec := Recommended(out)
	require.Len(t, rec, 1)
	assert.Equal(t, 1, rec[0].ID)
	assert.Equal(t, VariableBMDL, rec[0].Recommendation.RecommendedVariable)
}

func TestRecommendFlagsAllTies(t *testing.T) {
	in := []models.Model{
		candidate(1, 0, 10, 95),
		candidate(2, 0, 11, 95),
		candidate(3, 0, 12, 99),
	}
	out, err := New().Recommend(continuous(), in, nil)
	require.NoError(t, err)
	assert.True(t, out[0].Recommendation.Recommended)
	assert.True(t, out[1].Recommendation.Recommended)
	assert.False(t, out[2].Recommendation.Recommended)
}

func TestRecommendPerBMRGroup(t *testing.T) {
	in := []models.Model{
		candidate(1, 0, 10, 100),
		candidate(2, 1, 10, 100),
		candidate(3, 0, 12, 90),
		candidate(4, 1, 40, 80),
	}
	out, err := New().Recommend(continuous(), in, nil)
	require.NoError(t, err)

	sums := Summarize(out)
	require.Len(t, sums, 2)
	assert.Equal(t, []int{3}, sums[0].Recommended)
	assert.Equal(t, VariableAIC, sums[0].Variable)
	assert.Equal(t, []int{2}, sums[1].Recommended)
	assert.Equal(t, VariableBMDL, sums[1].Variable)
	assert.Equal(t, 2, sums[1].Counts[models.BinPass])
}

func TestNoPassingModelsNoRecommendation(t *testing.T) {
	a := candidate(1, 0, 10, 100)
	a.Output.BMD = models.NaN()
	b := candidate(2, 0, 12, 95)
	b.Output.BMD = -999

	out, err := New().Recommend(continuous(), []models.Model{a, b}, DefaultRules())
	require.NoError(t, err)
	for _, m := range out {
		assert.Equal(t, models.BinFailure, m.Recommendation.LogicBin)
		assert.False(t, m.Recommendation.Recommended)
		assert.Empty(t, m.Recommendation.RecommendedVariable)
		assert.Contains(t, m.Recommendation.LogicNotes[models.BinFailure], "BMD not estimated")
	}
}

func TestZeroBMDLGivesNoRecommendation(t *testing.T) {
	in := []models.Model{candidate(1, 0, 0, 100), candidate(2, 0, 5, 90)}
	out, err := New().Recommend(continuous(), in, nil)
	require.NoError(t, err)
	assert.Empty(t, Recommended(out))
}

func TestLogicBinIsMaxOfFailures(t *testing.T) {
	m := candidate(1, 0, 1, 100)
	m.Output.BMD = 8 // ratio 8: warn, not fail
	m.Output.Warnings = []string{"convergence"}
	m.Output.BMDU = models.NaN()

	rules := []models.LogicRule{
		{Name: "bmd_bmdl_ratio_warn", FailureBin: models.BinWarning, Threshold: threshold(5), ContinuousOn: true},
		{Name: "warnings", FailureBin: models.BinWarning, ContinuousOn: true},
		{Name: "bmdu_missing", FailureBin: models.BinFailure, ContinuousOn: true},
	}
	out, err := New().Recommend(continuous(), []models.Model{m}, rules)
	require.NoError(t, err)

	rec := out[0].Recommendation
	assert.Equal(t, models.BinFailure, rec.LogicBin)
	assert.Equal(t, []string{"BMD/BMDL ratio greater than threshold (8 > 5)", "Warning: convergence"}, rec.LogicNotes[models.BinWarning])
	assert.Equal(t, []string{"BMDU not estimated"}, rec.LogicNotes[models.BinFailure])
	assert.Empty(t, rec.LogicNotes[models.BinPass])
}

func TestPassingModelHasBinZero(t *testing.T) {
	m := candidate(1, 0, 10, 100)
	m.Output.BMD = 12
	m.Output.BMDU = 15
	m.Output.PValue4 = 0.5
	out, err := New().Recommend(continuous(), []models.Model{m}, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, models.BinPass, out[0].Recommendation.LogicBin)
	assert.True(t, out[0].Recommendation.Recommended)
}

func TestRecommendDoesNotMutateInput(t *testing.T) {
	in := []models.Model{candidate(1, 0, 10, 100)}
	in[0].Recommendation.Recommended = true
	in[0].Recommendation.RecommendedVariable = "stale"

	out, err := New().Recommend(continuous(), in, []models.LogicRule{
		{Name: "bmd_bmdl_ratio_warn", FailureBin: models.BinWarning, Threshold: threshold(1), ContinuousOn: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "stale", in[0].Recommendation.RecommendedVariable)
	assert.Nil(t, in[0].Recommendation.LogicNotes)
	assert.Equal(t, models.BinWarning, out[0].Recommendation.LogicBin)
	assert.False(t, out[0].Recommendation.Recommended)
}

func TestUnknownDataTypeIsFatal(t *testing.T) {
	ds := Dataset{DataType: models.DataTypeNotReported}
	_, err := New().Recommend(ds, []models.Model{candidate(1, 0, 10, 100)}, DefaultRules())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownDataType))
}

func TestUnknownRuleNamesAreSkipped(t *testing.T) {
	rules := []models.LogicRule{{Name: "not_a_rule", FailureBin: models.BinFailure, ContinuousOn: true}}
	out, err := New().Recommend(continuous(), []models.Model{candidate(1, 0, 10, 100)}, rules)
	require.NoError(t, err)
	assert.Equal(t, models.BinPass, out[0].Recommendation.LogicBin)
}

func TestSelectRules(t *testing.T) {
	got, err := SelectRules(DefaultRules(), models.DataTypeDichotomousCancer)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, r := range got {
		names[r.Name] = true
	}
	assert.True(t, names["gof_cancer"])
	assert.False(t, names["gof"])
	assert.False(t, names["variance_type"])

	_, err = SelectRules(DefaultRules(), models.DataType("X"))
	assert.Error(t, err)
}
