package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
)

// FileSource loads the raw series from a local .csv or .parquet file.
type FileSource struct {
	path string
	l    *applogger.Logger
}

func NewFileSource(path string, l *applogger.Logger) *FileSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &FileSource{path: path, l: l}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) LoadSeries(ctx context.Context) (*frame.Frame, error) {
	start := time.Now()
	f, err := ReadTable(s.path)
	if err != nil {
		s.l.Error("load series failed", applogger.String("path", s.path), applogger.Error(err))
		return nil, err
	}
	s.l.Info("series loaded",
		applogger.String("path", s.path),
		applogger.Int("rows", f.Len()),
		applogger.Int("columns", f.Width()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return f, nil
}

// ReadTable dispatches on the file extension.
func ReadTable(path string) (*frame.Frame, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return readCSVFile(path)
	case ".parquet":
		return readParquetFile(path)
	default:
		return nil, &models.UnsupportedFormatError{Path: path, Ext: ext}
	}
}

func readCSVFile(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	f, err := frame.ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
