package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	configs := map[string]Config{
		"default": DefaultConfig(),
		"serial":  Serial(),
		"forced":  {Enabled: true, NumWorkers: 4, MinChunkSize: 3},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			const n = 257
			var hits [n]int32
			For(n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			}, cfg)
			for i := range hits {
				assert.Equal(t, int32(1), hits[i], "index %d", i)
			}
		})
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.NumWorkers, 1)
	assert.Equal(t, cfg.NumWorkers > 1, cfg.Enabled)
}
