package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/hawcbmd/internal/models"
	"github.com/rewired-gh/hawcbmd/internal/storage"
)

func ptr[T any](v T) *T { return &v }

type fakeAPI struct {
	mu          sync.Mutex
	endpoint    *models.Endpoint
	session     *models.Session
	endpointErr error
	executed    int
	polled      int
	saved       []models.SelectedModel
	savedUpdate []bool
}

func (f *fakeAPI) GetEndpoint(ctx context.Context, id int) (*models.Endpoint, error) {
	if f.endpointErr != nil {
		return nil, f.endpointErr
	}
	e := *f.endpoint
	return &e, nil
}

func (f *fakeAPI) GetSession(ctx context.Context, url string) (*models.Session, error) {
	s := *f.session
	return &s, nil
}

func (f *fakeAPI) Execute(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed++
	return nil
}

func (f *fakeAPI) PollUntilFinished(ctx context.Context, url string, interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled++
	return nil
}

func (f *fakeAPI) SaveSelectedModel(ctx context.Context, url string, sel models.SelectedModel, exists bool) (*models.SelectedModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, sel)
	f.savedUpdate = append(f.savedUpdate, exists)
	return &sel, nil
}

type fakeNotifier struct {
	runs   []*models.Run
	errors []error
}

func (n *fakeNotifier) SendRecommendation(run *models.Run) error {
	n.runs = append(n.runs, run)
	return nil
}

func (n *fakeNotifier) SendError(endpointID int, err error) error {
	n.errors = append(n.errors, err)
	return nil
}

func fixture() *fakeAPI {
	mk := func(id int, name string, bmd, bmdl, aic float64, params map[string]models.ParameterEstimate) models.Model {
		out := models.EmptyOutput()
		out.BMD = models.Number(bmd)
		out.BMDL = models.Number(bmdl)
		out.BMDU = models.Number(bmd * 2)
		out.AIC = models.Number(aic)
		out.PValue4 = 0.4
		out.Parameters = params
		return models.Model{ID: id, Name: name, Output: out}
	}
	linear := map[string]models.ParameterEstimate{"beta_0": {Estimate: 5}, "beta_1": {Estimate: 0.05}}
	return &fakeAPI{
		endpoint: &models.Endpoint{
			ID:            7,
			Name:          "Liver weight",
			DataType:      models.DataTypeContinuous,
			ResponseUnits: "g",
			DefaultUnits:  1,
			Groups: []models.DoseGroup{
				{Dose: 0, Response: ptr(5.0), Stdev: ptr(0.5), IsReported: true},
				{Dose: 10, Response: ptr(5.5), Stdev: ptr(0.5), IsReported: true},
				{Dose: 100, Response: ptr(10.0), Stdev: ptr(0.7), IsReported: true},
			},
		},
		session: &models.Session{
			ID:               3,
			DoseUnits:        1,
			ExecuteURL:       "/execute/",
			ExecuteStatusURL: "/status/",
			SelectedModelURL: "/selected/",
			Models: []models.Model{
				mk(1, "Linear", 30, 20, 100, linear),
				mk(2, "Linear", 28, 22, 95, linear),
				mk(3, "Spline", 25, 21, 90, nil),
			},
		},
	}
}

func TestBothWaitsForBoth(t *testing.T) {
	var done int32
	a, b, err := Both(context.Background(),
		func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return 1, nil
		},
		func(ctx context.Context) (string, error) {
			atomic.AddInt32(&done, 1)
			return "b", nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, "b", b)
	assert.Equal(t, int32(2), atomic.LoadInt32(&done))
}

func TestBothCancelsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Both(context.Background(),
		func(ctx context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	)
	assert.True(t, errors.Is(err, boom))
}

func TestRecommendPersistsAndNotifies(t *testing.T) {
	api := fixture()
	store, err := storage.New(10, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	notifier := &fakeNotifier{}

	r := New(api, Config{Store: store, Notifier: notifier})
	run, err := r.Recommend(context.Background(), 7, "/session/")
	require.NoError(t, err)

	assert.Equal(t, models.RuleSourceDefaults, run.RuleSource)
	// BMDLs 20, 22, 21 are close, so the lowest AIC wins
	assert.Equal(t, []int{3}, run.RecommendedIDs())
	assert.Equal(t, "AIC", run.Models[2].Recommendation.RecommendedVariable)

	saved, err := store.LatestRun(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, run.ID, saved.ID)
	require.Len(t, notifier.runs, 1)
}

func TestRuleSourcePrecedence(t *testing.T) {
	api := fixture()
	cfgRules := []models.LogicRule{{Name: "gof", FailureBin: models.BinFailure, Threshold: ptr(0.5), ContinuousOn: true}}

	run, err := New(api, Config{Rules: cfgRules}).Recommend(context.Background(), 7, "/session/")
	require.NoError(t, err)
	assert.Equal(t, models.RuleSourceConfig, run.RuleSource)
	assert.Equal(t, models.BinFailure, run.Models[0].Recommendation.LogicBin)
	assert.Empty(t, run.RecommendedIDs())

	api.session.Logic = []models.LogicRule{{Name: "warnings", FailureBin: models.BinWarning, ContinuousOn: true}}
	run, err = New(api, Config{Rules: cfgRules}).Recommend(context.Background(), 7, "/session/")
	require.NoError(t, err)
	assert.Equal(t, models.RuleSourceSession, run.RuleSource)
	assert.Equal(t, models.BinPass, run.Models[0].Recommendation.LogicBin)
}

func TestRecommendUnknownDataType(t *testing.T) {
	api := fixture()
	api.endpoint.DataType = models.DataTypePercentDiff
	notifier := &fakeNotifier{}

	_, err := New(api, Config{Notifier: notifier}).Recommend(context.Background(), 7, "/session/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownDataType))
	assert.Len(t, notifier.errors, 1)
}

func TestRecommendFetchError(t *testing.T) {
	api := fixture()
	api.endpointErr = errors.New("connection refused")
	_, err := New(api, Config{}).Recommend(context.Background(), 7, "/session/")
	assert.Error(t, err)
}

func TestExecuteAndRecommend(t *testing.T) {
	api := fixture()
	run, err := New(api, Config{PollInterval: time.Millisecond}).ExecuteAndRecommend(context.Background(), 7, "/session/")
	require.NoError(t, err)
	assert.NotNil(t, run)
	assert.Equal(t, 1, api.executed)
	assert.Equal(t, 1, api.polled)
}

func TestSelect(t *testing.T) {
	api := fixture()
	r := New(api, Config{})

	_, err := r.Select(context.Background(), "/session/", 2, "closest BMDL")
	require.NoError(t, err)

	api.session.SelectedModel = &models.SelectedModel{Model: ptr(2)}
	_, err = r.Select(context.Background(), "/session/", 1, "")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, api.savedUpdate)
	assert.Equal(t, 2, *api.saved[0].Model)

	_, err = r.Select(context.Background(), "/session/", 99, "")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestPlot(t *testing.T) {
	api := fixture()
	r := New(api, Config{})

	var buf bytes.Buffer
	require.NoError(t, r.Plot(context.Background(), 7, "/session/", PlotOptions{ModelIDs: []int{1, 3}}, &buf))
	assert.Contains(t, buf.String(), "<svg")

	buf.Reset()
	require.NoError(t, r.Plot(context.Background(), 7, "/session/", PlotOptions{XLog: true}, &buf))
	assert.Contains(t, buf.String(), "<svg")

	err := r.Plot(context.Background(), 7, "/session/", PlotOptions{ModelIDs: []int{42}}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrUnknownModel))
}
