package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 128, cfg.BatchSize)
	assert.Equal(t, 500, cfg.Epochs)
	assert.InDelta(t, 0.0001, cfg.LearningRate, 1e-12)
	assert.Equal(t, 5, cfg.PrintFreq)
	assert.Equal(t, [2]float64{0.5, 1.5}, cfg.Brightness)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeFile(t, "epochs: 3\ncontrast: [0.8, 1.2]\nbackend: cpu-serial\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, [2]float64{0.8, 1.2}, cfg.Contrast)
	assert.Equal(t, "cpu-serial", cfg.Backend)
	assert.Equal(t, 128, cfg.BatchSize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "unknown_key: 1\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, "brightness: [1, 2, 3]\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative epochs", func(c *Config) { c.Epochs = -1 }},
		{"zero lr", func(c *Config) { c.LearningRate = 0 }},
		{"zero print freq", func(c *Config) { c.PrintFreq = 0 }},
		{"zero shuffle buffer", func(c *Config) { c.ShuffleBufferSize = 0 }},
		{"flip prob above one", func(c *Config) { c.FlipProb = 1.5 }},
		{"inverted brightness", func(c *Config) { c.Brightness = [2]float64{1.5, 0.5} }},
		{"negative contrast", func(c *Config) { c.Contrast = [2]float64{-1, 1} }},
		{"empty backend", func(c *Config) { c.Backend = " " }},
		{"unknown optimizer", func(c *Config) { c.Optimizer = "rmsprop" }},
		{"momentum one", func(c *Config) { c.Momentum = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestFromArgs_Layering(t *testing.T) {
	path := writeFile(t, "epochs: 7\nbatch_size: 64\nseed: 9\n")
	opts, err := FromArgs([]string{"-config", path, "-epochs", "2", "-synthetic", "256", "-evaluate"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 2, opts.Config.Epochs, "flag beats file")
	assert.Equal(t, 64, opts.Config.BatchSize, "file beats default")
	assert.Equal(t, uint64(9), opts.Config.Seed)
	assert.Equal(t, 0.0001, opts.Config.LearningRate, "untouched default")
	assert.Equal(t, 256, opts.Synthetic)
	assert.True(t, opts.Evaluate)
	assert.Equal(t, path, opts.ConfigPath)
}

func TestFromArgs_UnsetFlagDoesNotOverrideFile(t *testing.T) {
	path := writeFile(t, "learning_rate: 0.01\n")
	opts, err := FromArgs([]string{"-config", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 0.01, opts.Config.LearningRate)
}

func TestFromArgs_Errors(t *testing.T) {
	_, err := FromArgs([]string{"-batch-size", "0"}, io.Discard)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromArgs([]string{"extra"}, io.Discard)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromArgs([]string{"-synthetic", "-4"}, io.Discard)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromArgs([]string{"-no-such-flag"}, io.Discard)
	assert.Error(t, err)
}

func TestAugmentAndString(t *testing.T) {
	cfg := Default()
	aug := cfg.Augment()
	assert.Equal(t, 24, aug.CropSize)
	assert.Equal(t, 0.5, aug.FlipProb)
	assert.Contains(t, cfg.String(), "batch_size: 128")
}
