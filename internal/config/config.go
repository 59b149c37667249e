package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Trainer TrainerConfig `yaml:"trainer"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	OutputDir  string `yaml:"output_dir"`
	NumThreads int    `yaml:"num_threads"`
	LogLevel   string `yaml:"log_level"`
}

// TrainerConfig holds the training parameters. Zero values fall back to
// the trainer defaults.
type TrainerConfig struct {
	VocabSize       int      `yaml:"vocab_size"`
	SpecialTokens   []string `yaml:"special_tokens"`
	InitialAlphabet []string `yaml:"initial_alphabet"`
	UnkToken        string   `yaml:"unk_token"`
	SeedSize        int      `yaml:"seed_size"`
	ShrinkFactor    float64  `yaml:"shrink_factor"`
	EMIterations    int      `yaml:"em_iterations"`
	MaxPieceLength  int      `yaml:"max_piece_length"`
	ShowProgress    bool     `yaml:"show_progress"`

	// Pre-processing for the ingestion path.
	PreTokenizer   string `yaml:"pre_tokenizer"` // "whitespace" or "metaspace"
	Lowercase      bool   `yaml:"lowercase"`
	PruneSingleton bool   `yaml:"prune_singleton_words"`
	ExpectedWords  uint   `yaml:"expected_words"`
}

// LoadConfig reads and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.OutputDir == "" {
		c.App.OutputDir = "./models"
	}
	if c.App.NumThreads == 0 {
		c.App.NumThreads = 2
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Trainer.PreTokenizer == "" {
		c.Trainer.PreTokenizer = "whitespace"
	}
	if c.Trainer.ExpectedWords == 0 {
		c.Trainer.ExpectedWords = 1000000
	}
}

// Validate rejects settings the trainer could not start with.
func (c *Config) Validate() error {
	if c.Trainer.VocabSize <= 0 {
		return fmt.Errorf("trainer.vocab_size must be positive, got %d", c.Trainer.VocabSize)
	}
	switch c.Trainer.PreTokenizer {
	case "whitespace", "metaspace":
	default:
		return fmt.Errorf("trainer.pre_tokenizer must be whitespace or metaspace, got %q", c.Trainer.PreTokenizer)
	}
	return nil
}
