package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"CryptoVol/internal/domain/models"
	"CryptoVol/internal/services/pipeline"
	"CryptoVol/internal/services/preprocess"
	applogger "CryptoVol/pkg/logger"

	"github.com/klauspost/compress/zstd"
)

const (
	PipelineFile     = "models/best_pipeline.json.zst"
	PreprocessorFile = "transformer/preprocessor.json.zst"
)

// ArtifactStore persists fitted artifacts as zstd-compressed JSON under a root
// directory. Every write replaces the previous file atomically.
type ArtifactStore struct {
	root string
	l    *applogger.Logger
}

func NewArtifactStore(root string, l *applogger.Logger) *ArtifactStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ArtifactStore{root: root, l: l}
}

func (s *ArtifactStore) Root() string { return s.root }

func (s *ArtifactStore) PipelinePath() string { return filepath.Join(s.root, PipelineFile) }

func (s *ArtifactStore) PreprocessorPath() string { return filepath.Join(s.root, PreprocessorFile) }

func (s *ArtifactStore) SavePipeline(p *pipeline.Pipeline) (string, error) {
	path := s.PipelinePath()
	if err := writeCompressedJSON(path, p); err != nil {
		return "", err
	}
	s.l.Info("pipeline saved", applogger.String("path", path), applogger.String("model_id", p.ModelID))
	return path, nil
}

func (s *ArtifactStore) SavePreprocessor(pre *preprocess.Fitted) (string, error) {
	path := s.PreprocessorPath()
	if err := writeCompressedJSON(path, pre); err != nil {
		return "", err
	}
	s.l.Info("preprocessor saved", applogger.String("path", path), applogger.Int("width", pre.Width()))
	return path, nil
}

// LoadPipeline reads a pipeline from path, or from the default location when
// path is empty.
func (s *ArtifactStore) LoadPipeline(path string) (*pipeline.Pipeline, error) {
	if path == "" {
		path = s.PipelinePath()
	}
	var p pipeline.Pipeline
	if err := readCompressedJSON(path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ArtifactStore) LoadPreprocessor() (*preprocess.Fitted, error) {
	var pre preprocess.Fitted
	if err := readCompressedJSON(s.PreprocessorPath(), &pre); err != nil {
		return nil, err
	}
	return &pre, nil
}

func writeCompressedJSON(path string, v interface{}) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if err := json.NewEncoder(enc).Encode(v); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
		return enc.Close()
	})
}

func readCompressedJSON(path string, v interface{}) error {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &models.ModelNotFoundError{Path: path}
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	dec, err := zstd.NewReader(fh)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
