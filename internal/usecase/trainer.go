package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/services/pipeline"
	"CryptoVol/internal/services/preprocess"
	"CryptoVol/internal/services/regression"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
	"CryptoVol/pkg/util"
)

// PipelineStore persists fitted artifacts.
type PipelineStore interface {
	SavePipeline(p *pipeline.Pipeline) (string, error)
	SavePreprocessor(pre *preprocess.Fitted) (string, error)
	LoadPipeline(path string) (*pipeline.Pipeline, error)
}

type TrainerConfig struct {
	TargetColumn string
	DateColumn   string
	TestSize     float64
	Candidates   []regression.Spec
}

// ModelRun is one fitted candidate and its held-out scores.
type ModelRun struct {
	ModelID  string
	Pipeline *pipeline.Pipeline
	Metrics  models.RunMetrics
}

// Trainer fits every candidate on a chronological split and keeps the best.
type Trainer struct {
	cfg     TrainerConfig
	store   PipelineStore
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewTrainer(cfg TrainerConfig, store PipelineStore, metrics domrepo.Metrics, l *applogger.Logger) *Trainer {
	if cfg.TargetColumn == "" {
		cfg.TargetColumn = models.ColTarget
	}
	if cfg.DateColumn == "" {
		cfg.DateColumn = models.ColDate
	}
	if cfg.TestSize <= 0 || cfg.TestSize >= 1 {
		cfg.TestSize = 0.2
	}
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = regression.DefaultCandidates()
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Trainer{cfg: cfg, store: store, metrics: metrics, l: l}
}

// Train splits, fits, evaluates and selects, then persists the winner and its
// preprocessor. The returned report has no run id; callers assign one.
func (t *Trainer) Train(ctx context.Context, table *frame.Frame) (*models.TrainingReport, []ModelRun, error) {
	start := time.Now()
	for _, col := range []string{t.cfg.TargetColumn, t.cfg.DateColumn} {
		if !table.Has(col) {
			return nil, nil, &models.MissingColumnError{Column: col}
		}
	}

	labelled := table.DropNull(t.cfg.TargetColumn)
	if dropped := table.Len() - labelled.Len(); dropped > 0 {
		t.l.Info("rows without target excluded", applogger.Int("rows", dropped))
	}
	train, test, err := SplitChronological(labelled, t.cfg.DateColumn, t.cfg.TestSize)
	if err != nil {
		return nil, nil, err
	}
	t.metrics.RecordRows("train", train.Len())
	t.metrics.RecordRows("test", test.Len())

	xTrain, yTrain := t.xy(train)
	xTest, yTest := t.xy(test)

	numerical, categorical := preprocess.PartitionColumns(xTrain)
	pre, err := preprocess.Build(numerical, categorical).Fit(xTrain)
	if err != nil {
		return nil, nil, fmt.Errorf("fit preprocessor: %w", err)
	}
	t.l.Info("preprocessor fitted",
		applogger.Strings("numerical", numerical),
		applogger.Strings("categorical", categorical),
		applogger.Int("width", pre.Width()),
	)

	runs := make([]ModelRun, 0, len(t.cfg.Candidates))
	for _, spec := range t.cfg.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		run, err := t.fitCandidate(ctx, spec, pre, xTrain, yTrain, xTest, yTest)
		if err != nil {
			t.metrics.RecordError("fit_candidate")
			return nil, nil, err
		}
		runs = append(runs, run)
	}

	best, err := SelectBest(runs)
	if err != nil {
		return nil, nil, err
	}
	best.Pipeline.Metrics = best.Metrics
	t.metrics.RecordSelected(best.ModelID)

	prePath, err := t.store.SavePreprocessor(pre)
	if err != nil {
		return nil, nil, fmt.Errorf("persist preprocessor: %w", err)
	}
	pipePath, err := t.store.SavePipeline(best.Pipeline)
	if err != nil {
		return nil, nil, fmt.Errorf("persist pipeline: %w", err)
	}

	report := &models.TrainingReport{
		SelectedModel:      best.ModelID,
		TrainRows:          train.Len(),
		TestRows:           test.Len(),
		NumericalColumns:   numerical,
		CategoricalColumns: categorical,
		PipelinePath:       pipePath,
		PreprocessorPath:   prePath,
		TrainedAt:          best.Pipeline.TrainedAt,
	}
	for _, r := range runs {
		report.Candidates = append(report.Candidates, models.RunSummary{ModelID: r.ModelID, Metrics: r.Metrics})
	}
	t.metrics.RecordLatency("train", time.Since(start).Seconds())
	t.l.Info("best model selected",
		applogger.String("model_id", best.ModelID),
		applogger.Float64("r2", best.Metrics.R2),
		applogger.String("path", pipePath),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return report, runs, nil
}

func (t *Trainer) fitCandidate(
	ctx context.Context,
	spec regression.Spec,
	pre *preprocess.Fitted,
	xTrain *frame.Frame, yTrain []float64,
	xTest *frame.Frame, yTest []float64,
) (ModelRun, error) {
	id := spec.ID
	if id == "" {
		id = spec.Kind
	}
	started := time.Now()
	model, err := regression.New(spec)
	if err != nil {
		return ModelRun{}, fmt.Errorf("candidate %s: %w", id, err)
	}
	p, err := pipeline.Fit(ctx, id, pre, model, xTrain, yTrain)
	if err != nil {
		return ModelRun{}, err
	}
	pred, err := p.Predict(xTest)
	if err != nil {
		return ModelRun{}, fmt.Errorf("evaluate %s: %w", id, err)
	}
	m := regression.Evaluate(yTest, pred)
	t.metrics.RecordCandidate(id, m)
	t.l.Info("candidate evaluated",
		applogger.String("model_id", id),
		applogger.Float64("rmse", m.RMSE),
		applogger.Float64("mae", m.MAE),
		applogger.Float64("r2", m.R2),
		applogger.Duration("fit_ms", time.Since(started)),
	)
	return ModelRun{ModelID: id, Pipeline: p, Metrics: m}, nil
}

// xy drops the date and target columns and returns the label vector.
func (t *Trainer) xy(f *frame.Frame) (*frame.Frame, []float64) {
	target, _ := f.Column(t.cfg.TargetColumn)
	y := append([]float64(nil), target.Floats()...)
	return f.Drop(t.cfg.DateColumn, t.cfg.TargetColumn), y
}

// SplitChronological orders rows by date (stable, unparsable dates last) and
// cuts off the latest ceil(testSize*n) rows as the test block.
func SplitChronological(f *frame.Frame, dateColumn string, testSize float64) (train, test *frame.Frame, err error) {
	col, ok := f.Column(dateColumn)
	if !ok {
		return nil, nil, &models.MissingColumnError{Column: dateColumn}
	}
	n := f.Len()
	dates := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		dates[i], valid[i] = util.ParseDate(col.Text(i))
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if valid[ia] != valid[ib] {
			return valid[ia]
		}
		return valid[ia] && dates[ia].Before(dates[ib])
	})

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest > n {
		nTest = n
	}
	nTrain := n - nTest
	if nTrain == 0 {
		return nil, nil, models.ErrEmptyTrainSplit
	}
	return f.Take(order[:nTrain]), f.Take(order[nTrain:]), nil
}

// SelectBest returns the run with the highest R². Ties keep the earlier
// candidate and a NaN score never beats a number.
func SelectBest(runs []ModelRun) (ModelRun, error) {
	if len(runs) == 0 {
		return ModelRun{}, models.ErrNoCandidates
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if r.Metrics.R2 > best.Metrics.R2 || (math.IsNaN(best.Metrics.R2) && !math.IsNaN(r.Metrics.R2)) {
			best = r
		}
	}
	return best, nil
}
