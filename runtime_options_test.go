package fiberloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRuntimeOptions_Defaults(t *testing.T) {
	cfg := resolveRuntimeOptions(nil)
	assert.Equal(t, defaultPoolSize, cfg.poolSize)
	assert.Equal(t, defaultSlabCapacity, cfg.slabCapacity)
	require.NotNil(t, cfg.log)
}

func TestResolveRuntimeOptions_Overrides(t *testing.T) {
	log := NewNoopLogger()
	cfg := resolveRuntimeOptions([]RuntimeOption{
		WithPoolSize(3),
		WithSlabCapacity(64),
		WithStackLogger(log),
		nil, // nil options are skipped, like the teacher's resolveLoopOptions
	})
	assert.Equal(t, 3, cfg.poolSize)
	assert.Equal(t, 64, cfg.slabCapacity)
	assert.Same(t, log, cfg.log)
}

func TestResolveRuntimeOptions_NonPositiveValuesIgnored(t *testing.T) {
	cfg := resolveRuntimeOptions([]RuntimeOption{
		WithPoolSize(0),
		WithSlabCapacity(-1),
	})
	assert.Equal(t, defaultPoolSize, cfg.poolSize)
	assert.Equal(t, defaultSlabCapacity, cfg.slabCapacity)
}

func TestNewRuntime_DefaultPoolSize(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, defaultPoolSize, rt.NumLoops())
}
