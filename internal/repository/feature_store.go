package repository

import (
	"context"
	"io"
	"path/filepath"

	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
)

const (
	FullFeaturesFile  = "crypto_features_full.csv"
	ModelFeaturesFile = "crypto_features_model.csv"
	RawCopyFile       = "raw/raw_data.csv"
)

// CSVFeatureStore writes the raw copy and the full and model-ready feature
// tables into a directory.
type CSVFeatureStore struct {
	dir string
	l   *applogger.Logger
}

func NewCSVFeatureStore(dir string, l *applogger.Logger) *CSVFeatureStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVFeatureStore{dir: dir, l: l}
}

func (s *CSVFeatureStore) FullPath() string { return filepath.Join(s.dir, FullFeaturesFile) }

func (s *CSVFeatureStore) ModelPath() string { return filepath.Join(s.dir, ModelFeaturesFile) }

func (s *CSVFeatureStore) RawPath() string { return filepath.Join(s.dir, RawCopyFile) }

// SaveRaw keeps a copy of the series exactly as it was ingested.
func (s *CSVFeatureStore) SaveRaw(ctx context.Context, raw *frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeCSVAtomic(s.RawPath(), raw); err != nil {
		return err
	}
	s.l.Info("raw copy written", applogger.String("path", s.RawPath()), applogger.Int("rows", raw.Len()))
	return nil
}

func (s *CSVFeatureStore) SaveFeatures(ctx context.Context, full, modelReady *frame.Frame) error {
	for _, out := range []struct {
		path string
		f    *frame.Frame
	}{
		{s.FullPath(), full},
		{s.ModelPath(), modelReady},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeCSVAtomic(out.path, out.f); err != nil {
			return err
		}
		s.l.Info("feature table written", applogger.String("path", out.path), applogger.Int("rows", out.f.Len()))
	}
	return nil
}

// LoadModelFeatures reads the model-ready table back.
func (s *CSVFeatureStore) LoadModelFeatures() (*frame.Frame, error) {
	return readCSVFile(s.ModelPath())
}

func writeCSVAtomic(path string, f *frame.Frame) error {
	return writeFileAtomic(path, func(w io.Writer) error { return frame.WriteCSV(w, f) })
}
