package testbed

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestbedRunsHeadless(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Application.MaxFrames = 10
	cfg.Application.BindingsDir = "../assets/bindings"

	tb := NewTestGame(cfg)
	backend := headless.New()
	e, err := engine.New(tb.Game, backend)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	water, ok := e.Registry().Find("water")
	require.True(t, ok)
	_, ok = water.Bindings.Lookup(shaders.UniformBinding, "wave_height")
	assert.True(t, ok, "bindings file applied at startup")

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(10), e.Frames())

	state := tb.State.(*gameState)
	draws := backend.DrawCalls()
	assert.Greater(t, draws, 0)
	assert.Less(t, draws, len(state.drawables)/4, "the brick grid is merged")
	assert.Zero(t, e.Renderer().Metrics().Current.SkippedDrawables)

	require.NoError(t, e.Shutdown())
}
