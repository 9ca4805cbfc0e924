package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/backend"
	"github.com/born-ml/cifarnet/internal/config"
)

func TestRun_SyntheticWithEvaluation(t *testing.T) {
	opts, err := config.FromArgs([]string{
		"-synthetic", "20", "-epochs", "1", "-batch-size", "10", "-evaluate", "-optimizer", "sgd",
	}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(opts, &out, slog.New(slog.NewTextHandler(io.Discard, nil))))

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "Epoch 1 of 1 took "))
	assert.Contains(t, text, "test acc:")
}

func TestRun_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := config.Options{Config: config.Default(), Synthetic: 4}
	opts.Config.Backend = "tpu"
	assert.ErrorIs(t, run(opts, io.Discard, logger), backend.ErrUnknownBackend)

	opts = config.Options{Config: config.Default(), DataDir: t.TempDir()}
	assert.Error(t, run(opts, io.Discard, logger))
}
