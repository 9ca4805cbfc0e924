// Package config holds the run configuration: defaults, an optional YAML
// file and command-line overrides, validated once at startup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/cifarnet/internal/vision"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Optimizer names.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// Config holds training settings.
type Config struct {
	BatchSize         int        `yaml:"batch_size"`
	Epochs            int        `yaml:"epochs"`
	LearningRate      float64    `yaml:"learning_rate"`
	PrintFreq         int        `yaml:"print_freq"`
	ShuffleBufferSize int        `yaml:"shuffle_buffer_size"`
	CropSize          int        `yaml:"crop_size"`
	FlipProb          float64    `yaml:"flip_prob"`
	Brightness        [2]float64 `yaml:"brightness"`
	Contrast          [2]float64 `yaml:"contrast"`
	Backend           string     `yaml:"backend"`
	Seed              uint64     `yaml:"seed"`
	Optimizer         string     `yaml:"optimizer"`
	// Momentum applies to the sgd optimizer only.
	Momentum float64 `yaml:"momentum"`
}

// Default returns the reference training settings.
func Default() Config {
	aug := vision.DefaultAugment()
	return Config{
		BatchSize:         128,
		Epochs:            500,
		LearningRate:      0.0001,
		PrintFreq:         5,
		ShuffleBufferSize: 128,
		CropSize:          aug.CropSize,
		FlipProb:          aug.FlipProb,
		Brightness:        aug.Brightness,
		Contrast:          aug.Contrast,
		Backend:           "cpu",
		Seed:              1,
		Optimizer:         OptimizerAdam,
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks every field and reports the first problem found.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalid, c.BatchSize)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalid, c.Epochs)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalid, c.LearningRate)
	case c.PrintFreq <= 0:
		return fmt.Errorf("%w: print_freq must be positive, got %d", ErrInvalid, c.PrintFreq)
	case c.ShuffleBufferSize <= 0:
		return fmt.Errorf("%w: shuffle_buffer_size must be positive, got %d", ErrInvalid, c.ShuffleBufferSize)
	case c.CropSize <= 0:
		return fmt.Errorf("%w: crop_size must be positive, got %d", ErrInvalid, c.CropSize)
	case c.FlipProb < 0 || c.FlipProb > 1:
		return fmt.Errorf("%w: flip_prob must be in [0, 1], got %g", ErrInvalid, c.FlipProb)
	case !validRange(c.Brightness):
		return fmt.Errorf("%w: brightness range %v", ErrInvalid, c.Brightness)
	case !validRange(c.Contrast):
		return fmt.Errorf("%w: contrast range %v", ErrInvalid, c.Contrast)
	case strings.TrimSpace(c.Backend) == "":
		return fmt.Errorf("%w: backend is empty", ErrInvalid)
	case c.Optimizer != OptimizerAdam && c.Optimizer != OptimizerSGD:
		return fmt.Errorf("%w: optimizer %q (want %s or %s)", ErrInvalid, c.Optimizer, OptimizerAdam, OptimizerSGD)
	case c.Momentum < 0 || c.Momentum >= 1:
		return fmt.Errorf("%w: momentum must be in [0, 1), got %g", ErrInvalid, c.Momentum)
	}
	return nil
}

func validRange(r [2]float64) bool {
	return r[0] >= 0 && r[0] <= r[1]
}

// Augment returns the augmentation settings.
func (c Config) Augment() vision.AugmentConfig {
	return vision.AugmentConfig{
		CropSize:   c.CropSize,
		FlipProb:   c.FlipProb,
		Brightness: c.Brightness,
		Contrast:   c.Contrast,
	}
}

// String renders the config as YAML.
func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "config: " + err.Error()
	}
	return string(out)
}
