package slink //nolint:testpackage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlink/searchlink/checkpoint"
)

func TestManagerRunsAllCollections(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	progress, err := checkpoint.LoadProgress(filepath.Join(dir, "progress.json"))
	require.NoError(t, err)

	tokens := checkpoint.NewFileTokenStore(dir)
	source := &fakeSource{docs: makeDocs(3)}
	sink := newFakeSink(5)
	gate := NewGate()

	m := NewManager(gate)
	m.Add(NewOrchestrator("users", source, sink, progress, tokens, gate))
	m.Add(NewOrchestrator("posts", source, sink, progress, tokens, gate))

	require.NoError(t, m.Run(context.Background()))

	defer m.Shutdown(context.Background())

	statuses := m.Statuses()
	require.Len(t, statuses, 2)

	colls := []string{statuses[0].Collection, statuses[1].Collection}
	assert.ElementsMatch(t, []string{"users", "posts"}, colls)

	for _, st := range statuses {
		assert.Equal(t, StateWatching, st.State, st.Collection)
	}

	assert.Equal(t, 2, source.watchCount())
	assert.Equal(t, 2, sink.sendCount(), "each collection dumps independently")
}

func TestManagerPauseResume(t *testing.T) {
	t.Parallel()

	m := NewManager(NewGate())
	assert.False(t, m.Paused())

	m.PauseAllBootstraps()
	assert.True(t, m.Paused())

	m.ResumeAllBootstraps()
	assert.False(t, m.Paused())
}
