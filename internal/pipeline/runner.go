package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/hawcbmd/internal/bmdline"
	"github.com/rewired-gh/hawcbmd/internal/chart"
	"github.com/rewired-gh/hawcbmd/internal/formula"
	"github.com/rewired-gh/hawcbmd/internal/hawc"
	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/models"
	"github.com/rewired-gh/hawcbmd/internal/recommend"
)

// ErrUnknownModel is returned when a model id is not part of the session.
var ErrUnknownModel = eris.New("pipeline: model not in session")

// API is the subset of the HAWC client the runner needs.
type API interface {
	GetEndpoint(ctx context.Context, id int) (*models.Endpoint, error)
	GetSession(ctx context.Context, url string) (*models.Session, error)
	Execute(ctx context.Context, url string) error
	PollUntilFinished(ctx context.Context, url string, interval time.Duration) error
	SaveSelectedModel(ctx context.Context, url string, sel models.SelectedModel, exists bool) (*models.SelectedModel, error)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) error
	RotateRuns(ctx context.Context) (int, error)
}

// Notifier reports run outcomes.
type Notifier interface {
	SendRecommendation(run *models.Run) error
	SendError(endpointID int, err error) error
}

// Config holds the runner's collaborators and settings. Store and Notifier
// are optional.
type Config struct {
	Rules        []models.LogicRule
	PollInterval time.Duration
	Store        RunStore
	Notifier     Notifier
}

// Runner executes recommendation, selection and plotting operations.
type Runner struct {
	api          API
	engine       *recommend.Engine
	rules        []models.LogicRule
	pollInterval time.Duration
	store        RunStore
	notifier     Notifier
}

// New creates a runner.
func New(api API, cfg Config) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = hawc.DefaultPollInterval
	}
	return &Runner{
		api:          api,
		engine:       recommend.New(),
		rules:        cfg.Rules,
		pollInterval: cfg.PollInterval,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
	}
}

// load fetches the endpoint and session concurrently.
func (r *Runner) load(ctx context.Context, endpointID int, sessionURL string) (*models.Endpoint, *models.Session, error) {
	e, s, err := Both(ctx,
		func(ctx context.Context) (*models.Endpoint, error) { return r.api.GetEndpoint(ctx, endpointID) },
		func(ctx context.Context) (*models.Session, error) { return r.api.GetSession(ctx, sessionURL) },
	)
	if err != nil {
		return nil, nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, nil, eris.Wrapf(err, "invalid endpoint %d", endpointID)
	}
	return e, s, nil
}

// rulesFor picks session logic first, then configured rules, then defaults.
func (r *Runner) rulesFor(s *models.Session) ([]models.LogicRule, models.RuleSource) {
	switch {
	case len(s.Logic) > 0:
		return s.Logic, models.RuleSourceSession
	case len(r.rules) > 0:
		return r.rules, models.RuleSourceConfig
	default:
		return recommend.DefaultRules(), models.RuleSourceDefaults
	}
}

func doseUnits(e *models.Endpoint, s *models.Session) int {
	if s.DoseUnits != 0 {
		return s.DoseUnits
	}
	return e.DefaultUnits
}

func (r *Runner) score(e *models.Endpoint, s *models.Session) ([]models.Model, models.RuleSource, error) {
	rules, source := r.rulesFor(s)
	scored, err := r.engine.Recommend(recommend.NewDataset(e, doseUnits(e, s)), s.Models, rules)
	if err != nil {
		return nil, source, err
	}
	return scored, source, nil
}

// Recommend loads an endpoint and its BMD session, scores every model and
// records the run. Storage and notification failures are logged, not returned.
func (r *Runner) Recommend(ctx context.Context, endpointID int, sessionURL string) (*models.Run, error) {
	e, s, err := r.load(ctx, endpointID, sessionURL)
	if err != nil {
		r.notifyError(endpointID, err)
		return nil, err
	}

	scored, source, err := r.score(e, s)
	if err != nil {
		r.notifyError(endpointID, err)
		return nil, eris.Wrapf(err, "recommend endpoint %d", endpointID)
	}

	run := &models.Run{
		EndpointID:   e.ID,
		EndpointName: e.Name,
		SessionID:    s.ID,
		SessionURL:   sessionURL,
		DataType:     e.DataType,
		DoseUnits:    doseUnits(e, s),
		RuleSource:   source,
		Models:       scored,
		CreatedAt:    time.Now().UTC(),
	}
	logger.Info("Scored %d models for endpoint %d using %s rules; recommended %v",
		len(scored), e.ID, source, run.RecommendedIDs())

	if r.store != nil {
		if err := r.store.SaveRun(ctx, run); err != nil {
			logger.Error("Failed to save run: %v", err)
		} else if n, err := r.store.RotateRuns(ctx); err != nil {
			logger.Error("Failed to rotate runs: %v", err)
		} else if n > 0 {
			logger.Debug("Rotated %d old runs", n)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.SendRecommendation(run); err != nil {
			logger.Error("Failed to send notification: %v", err)
		}
	}
	return run, nil
}

func (r *Runner) notifyError(endpointID int, err error) {
	if r.notifier == nil || errors.Is(err, context.Canceled) {
		return
	}
	if nerr := r.notifier.SendError(endpointID, err); nerr != nil {
		logger.Error("Failed to send error notification: %v", nerr)
	}
}

// ExecuteAndRecommend triggers model execution, waits for it to finish and
// then runs Recommend.
func (r *Runner) ExecuteAndRecommend(ctx context.Context, endpointID int, sessionURL string) (*models.Run, error) {
	s, err := r.api.GetSession(ctx, sessionURL)
	if err != nil {
		return nil, err
	}
	if err := r.api.Execute(ctx, s.ExecuteURL); err != nil {
		return nil, err
	}
	logger.Info("Execution requested for session %d; polling every %s", s.ID, r.pollInterval)
	if err := r.api.PollUntilFinished(ctx, s.ExecuteStatusURL, r.pollInterval); err != nil {
		return nil, err
	}
	return r.Recommend(ctx, endpointID, sessionURL)
}

// Select stores modelID as the session's chosen model.
func (r *Runner) Select(ctx context.Context, sessionURL string, modelID int, notes string) (*models.SelectedModel, error) {
	s, err := r.api.GetSession(ctx, sessionURL)
	if err != nil {
		return nil, err
	}
	if _, ok := s.Model(modelID); !ok {
		return nil, eris.Wrapf(ErrUnknownModel, "model %d", modelID)
	}
	sel := models.SelectedModel{Model: &modelID, Notes: notes}
	return r.api.SaveSelectedModel(ctx, s.SelectedModelURL, sel, s.SelectedModel != nil)
}

// PlotOptions selects what Plot draws. With no ModelIDs the recommended
// models are drawn, falling back to the session's selected model.
type PlotOptions struct {
	XLog      bool
	YLog      bool
	DoseUnits int
	ModelIDs  []int
	Chart     chart.Options
}

// Plot renders the endpoint's dose-response chart with BMD lines as SVG.
func (r *Runner) Plot(ctx context.Context, endpointID int, sessionURL string, opts PlotOptions, w io.Writer) error {
	e, s, err := r.load(ctx, endpointID, sessionURL)
	if err != nil {
		return err
	}

	units := doseUnits(e, s)
	state := chart.NewState(units)
	if opts.XLog {
		state, _ = state.ToggleXScale()
	}
	if opts.YLog {
		state, _ = state.ToggleYScale()
	}
	if opts.DoseUnits != 0 {
		state, _ = state.SetDoseUnits(opts.DoseUnits)
	}

	ids, err := r.plotIDs(e, s, opts.ModelIDs)
	if err != nil {
		return err
	}
	for i, id := range ids {
		m, ok := s.Model(id)
		if !ok {
			return eris.Wrapf(ErrUnknownModel, "model %d", id)
		}
		line, err := bmdline.New(*m, units, bmdline.Palette(i))
		if errors.Is(err, formula.ErrUnknownFamily) {
			logger.Warn("Not plotting model %d: %v", id, err)
			continue
		}
		if err != nil {
			return err
		}
		if state, _, err = state.AddLine(line); err != nil {
			return err
		}
	}

	if opts.Chart.Title == "" {
		opts.Chart.Title = e.Name
	}
	return chart.Render(w, e, state, opts.Chart)
}

func (r *Runner) plotIDs(e *models.Endpoint, s *models.Session, requested []int) ([]int, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	scored, _, err := r.score(e, s)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, m := range recommend.Recommended(scored) {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 && s.SelectedModel != nil && s.SelectedModel.Model != nil {
		ids = append(ids, *s.SelectedModel.Model)
	}
	return ids, nil
}
