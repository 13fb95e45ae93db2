package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionHistory_Lifecycle(t *testing.T) {
	h := NewExecutionHistory("id-1", "rag", SourceConfig)
	assert.Equal(t, ExecutionStatusRunning, h.Status)

	n := h.RecordNodeStart("evaluator")
	h.RecordNodeEnd(n, "response-generator", "proceed", nil)
	n2 := h.RecordNodeStart("response-generator")
	h.RecordNodeEnd(n2, "", "", errors.New("boom"))
	h.SetMetadata("query", "hello")
	h.Complete(errors.New("boom"))

	assert.Equal(t, ExecutionStatusFailed, h.Status)
	assert.Equal(t, "boom", h.Error)
	assert.Equal(t, []string{"evaluator", "response-generator"}, h.Path())
	assert.Equal(t, ExecutionStatusCompleted, h.GetNodes()[0].Status)
	assert.Equal(t, ExecutionStatusFailed, h.GetNodes()[1].Status)
	assert.Equal(t, "hello", h.Metadata["query"])
}

func TestMemoryHistoryStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(10)

	h := NewExecutionHistory("id-1", "rag", SourceConfig)
	require.NoError(t, store.Save(ctx, h))

	got, err := store.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Same(t, h, got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrHistoryNotFound)
}

func TestMemoryHistoryStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, NewExecutionHistory(fmt.Sprintf("id-%d", i), "rag", SourceConfig)))
	}

	assert.Equal(t, 3, store.Len())
	_, err := store.Get(ctx, "id-0")
	assert.ErrorIs(t, err, ErrHistoryNotFound)
	_, err = store.Get(ctx, "id-4")
	assert.NoError(t, err)
}
