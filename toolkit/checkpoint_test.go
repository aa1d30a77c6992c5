package toolkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloom/agentloom/core"
)

func stateWithIteration(n int) *core.WorkflowState {
	st := core.NewWorkflowState("test input")
	st.Iteration = n
	return st
}

func TestFileStoreSaveAndList(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := NewFileStore(t.TempDir(), func(o *FileStoreOptions) { o.Now = clock.now })
	require.NoError(t, err)

	require.NoError(t, store.Save("exec-1", stateWithIteration(1)))
	clock.advance(time.Second)
	require.NoError(t, store.Save("exec-1", stateWithIteration(2)))
	clock.advance(time.Second)
	require.NoError(t, store.Save("exec-2", stateWithIteration(9)))

	cps, err := store.List("exec-1")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, 2, cps[0].State.Iteration, "newest first")
	assert.Equal(t, 1, cps[1].State.Iteration)

	latest, err := store.Latest("exec-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.State.Iteration)
}

func TestFileStoreLatestEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Latest("missing")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestMemoryStoreNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("exec-1", stateWithIteration(1)))
	require.NoError(t, store.Save("exec-1", stateWithIteration(2)))

	cps, err := store.List("exec-1")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, 2, cps[0].State.Iteration)

	latest, err := store.Latest("exec-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.State.Iteration)
}

func TestSaveClonesState(t *testing.T) {
	store := NewMemoryStore()
	st := stateWithIteration(1)
	require.NoError(t, store.Save("exec-1", st))

	st.Iteration = 99
	latest, err := store.Latest("exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.State.Iteration, "snapshot is isolated from later mutation")
}
