package wins

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"winsboard/adapters/kv"
)

func TestKVBlobStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	backend := kv.NewMemoryBackend(kv.WithMemoryClock(clock.Now))
	store := NewKVBlobStore(backend)

	id, err := store.Put(ctx, "payload")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "img_"))

	payload, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "payload", payload)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVBlobStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	backend := kv.NewMemoryBackend(kv.WithMemoryClock(clock.Now))
	store := NewKVBlobStore(backend)

	id, err := store.Put(ctx, "payload")
	require.NoError(t, err)

	clock.Set(clock.Now().Add(DefaultBlobTTL - time.Second))
	_, err = store.Get(ctx, id)
	require.NoError(t, err)

	clock.Set(clock.Now().Add(time.Second))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVBlobStore_Failures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("write fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := kv.NewMockIBackend(ctrl)
		store := NewKVBlobStore(backend)
		backend.EXPECT().Set(gomock.Any(), gomock.Any(), "payload").Return(boom)

		id, err := store.Put(ctx, "payload")
		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.Empty(t, id)
	})

	t.Run("expiry fails removes the image", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := kv.NewMockIBackend(ctrl)
		store := NewKVBlobStore(backend, WithBlobTTL(time.Hour))

		var key string
		gomock.InOrder(
			backend.EXPECT().Set(gomock.Any(), gomock.Any(), "payload").DoAndReturn(func(_ context.Context, k, _ string) error {
				key = k
				return nil
			}),
			backend.EXPECT().Expire(gomock.Any(), gomock.Any(), time.Hour).Return(boom),
			backend.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, k string) error {
				assert.Equal(t, key, k)
				return nil
			}),
		)

		id, err := store.Put(ctx, "payload")
		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, id)
	})

	t.Run("read fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := kv.NewMockIBackend(ctrl)
		store := NewKVBlobStore(backend)
		backend.EXPECT().Get(gomock.Any(), BlobKey("img_1")).Return("", boom)

		_, err := store.Get(ctx, "img_1")
		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "wins:abc", RecordKey("abc"))
	assert.Equal(t, "wins-image:img_1", BlobKey("img_1"))

	id, ok := RecordIDFromKey("wins:abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	for _, key := range []string{IndexKey, "wins:", "wins-image:img_1", "wins-idem:k"} {
		_, ok := RecordIDFromKey(key)
		assert.False(t, ok, key)
	}

	id, ok = BlobIDFromKey("wins-image:img_1")
	assert.True(t, ok)
	assert.Equal(t, "img_1", id)
	_, ok = BlobIDFromKey("wins:abc")
	assert.False(t, ok)
}
