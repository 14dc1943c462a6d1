package models

import "time"

// RunMetrics are the held-out scores of one candidate.
type RunMetrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// RunSummary is the transport-safe view of a ModelRun.
type RunSummary struct {
	ModelID string     `json:"model_id"`
	Metrics RunMetrics `json:"metrics"`
}

// TrainingReport describes one completed training run. It is logged and
// published so that serving instances can reload the pipeline.
type TrainingReport struct {
	RunID              string       `json:"run_id"`
	SelectedModel      string       `json:"selected_model"`
	Candidates         []RunSummary `json:"candidates"`
	TrainRows          int          `json:"train_rows"`
	TestRows           int          `json:"test_rows"`
	NumericalColumns   []string     `json:"numerical_columns"`
	CategoricalColumns []string     `json:"categorical_columns"`
	PipelinePath       string       `json:"pipeline_path"`
	PreprocessorPath   string       `json:"preprocessor_path"`
	TrainedAt          time.Time    `json:"trained_at"`
}

// Selected returns the summary of the selected candidate.
func (r TrainingReport) Selected() (RunSummary, bool) {
	for _, c := range r.Candidates {
		if c.ModelID == r.SelectedModel {
			return c, true
		}
	}
	return RunSummary{}, false
}
