package slink //nolint:testpackage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatePauseResume(t *testing.T) {
	t.Parallel()

	g := NewGate()
	assert.False(t, g.Paused())

	g.Pause()
	assert.True(t, g.Paused())

	g.Pause() // repeated pause is a no-op
	assert.True(t, g.Paused())

	g.Resume()
	assert.False(t, g.Paused())

	g.Resume() // repeated resume is a no-op
	assert.False(t, g.Paused())
}

func TestGateWaitOpenGate(t *testing.T) {
	t.Parallel()

	g := NewGate()

	require.NoError(t, g.Wait(context.Background()))
}

func TestGateWaitBlocksUntilResume(t *testing.T) {
	t.Parallel()

	g := NewGate()
	g.Pause()

	released := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			released <- g.Wait(context.Background())
		}()
	}

	select {
	case <-released:
		t.Fatal("Wait returned while the gate is paused")
	case <-time.After(20 * time.Millisecond):
	}

	g.Resume()

	require.NoError(t, <-released)
	require.NoError(t, <-released)
}

func TestGateWaitCanceledContext(t *testing.T) {
	t.Parallel()

	g := NewGate()
	g.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, g.Wait(ctx), context.Canceled)
}
