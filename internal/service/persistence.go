package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"unigram-go/internal/model/unigram"
)

const modelFormatVersion = "1.0"

// SerializableModel is the on-disk representation of a trained model.
type SerializableModel struct {
	Version      string          `json:"version"`
	RunID        string          `json:"run_id"`
	CreatedAt    time.Time       `json:"created_at"`
	SpecialCount int             `json:"special_count"`
	UnknownID    int             `json:"unk_id"`
	Pieces       []unigram.Piece `json:"vocab"`
}

// ModelPersistence saves and loads trained models as versioned JSON files
// in an output directory.
type ModelPersistence struct {
	outputDir string
	logger    *zap.Logger
}

// NewModelPersistence creates the output directory if needed.
func NewModelPersistence(outputDir string, logger *zap.Logger) (*ModelPersistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ModelPersistence{outputDir: outputDir, logger: logger}, nil
}

func (p *ModelPersistence) modelPath(name string) string {
	return filepath.Join(p.outputDir, name+".model.json")
}

// ModelExists reports whether a saved model with this name is present.
func (p *ModelPersistence) ModelExists(name string) bool {
	_, err := os.Stat(p.modelPath(name))
	return err == nil
}

// SaveModel writes the model to disk under the given name.
func (p *ModelPersistence) SaveModel(m *unigram.Model, name, runID string) error {
	serializable := SerializableModel{
		Version:      modelFormatVersion,
		RunID:        runID,
		CreatedAt:    time.Now().UTC(),
		SpecialCount: m.SpecialCount,
		UnknownID:    m.UnknownID,
		Pieces:       m.Pieces,
	}
	data, err := json.MarshalIndent(&serializable, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	path := p.modelPath(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	p.logger.Info("model saved",
		zap.String("path", path),
		zap.Int("pieces", len(m.Pieces)),
		zap.String("run_id", runID),
	)
	return nil
}

// LoadModel reads a saved model back.
func (p *ModelPersistence) LoadModel(name string) (*unigram.Model, error) {
	path := p.modelPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var serializable SerializableModel
	if err := json.Unmarshal(data, &serializable); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	if serializable.Version != modelFormatVersion {
		return nil, fmt.Errorf("unsupported model format version %q in %s", serializable.Version, path)
	}
	p.logger.Info("model loaded",
		zap.String("path", path),
		zap.Int("pieces", len(serializable.Pieces)),
		zap.String("run_id", serializable.RunID),
	)
	return &unigram.Model{
		Pieces:       serializable.Pieces,
		SpecialCount: serializable.SpecialCount,
		UnknownID:    serializable.UnknownID,
	}, nil
}
