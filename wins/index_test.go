package wins

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsboard/adapters/kv"
)

func newTestIndex(backend kv.IBackend) *IndexManager {
	return newIndexManager(newOptimisticWriter(backend, 3, time.Millisecond, slog.Default()))
}

func TestIndexManager(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryBackend()
	index := newTestIndex(backend)

	ids, err := index.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	require.NoError(t, index.Append(ctx, "a"))
	require.NoError(t, index.Append(ctx, "b"))
	require.NoError(t, index.Append(ctx, "a"))

	raw, err := backend.Get(ctx, IndexKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, raw)

	require.NoError(t, index.Remove(ctx, "a"))
	require.NoError(t, index.Remove(ctx, "missing"))

	ids, err = index.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	require.NoError(t, index.Remove(ctx, "b"))
	raw, err = backend.Get(ctx, IndexKey)
	require.NoError(t, err)
	assert.Equal(t, `[]`, raw)
}

func TestIndexManager_RemoveOnAbsentIndexWritesNothing(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryBackend()
	index := newTestIndex(backend)

	require.NoError(t, index.Remove(ctx, "a"))
	assert.Empty(t, backend.Keys())
}

func TestIndexManager_NullIndex(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, IndexKey, "null"))
	index := newTestIndex(backend)

	ids, err := index.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	require.NoError(t, index.Append(ctx, "a"))
	ids, err = index.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestIndexManager_Corrupted(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, IndexKey, "not json"))
	index := newTestIndex(backend)

	_, err := index.ListIDs(ctx)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, index.Append(ctx, "a"), ErrStorageFailure)
	assert.ErrorIs(t, index.Remove(ctx, "a"), ErrStorageFailure)

	raw, err := backend.Get(ctx, IndexKey)
	require.NoError(t, err)
	assert.Equal(t, "not json", raw)
}
