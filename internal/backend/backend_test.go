package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	b, err := Resolve("cpu")
	require.NoError(t, err)
	assert.Contains(t, b.Name(), "CPU")

	b, err = Resolve(" CPU-Serial ")
	require.NoError(t, err)
	assert.Equal(t, "CPU(serial)", b.Name())
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve("webgpu")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), `"webgpu"`)
}
