package kv

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryBackend_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNil)

	require.NoError(t, b.Set(ctx, "k", "v1"))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNil)
}

func TestMemoryBackend_Expire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewMemoryBackend(WithMemoryClock(clock.Now))

	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Expire(ctx, "k", time.Hour))
	require.NoError(t, b.Expire(ctx, "missing", time.Hour))

	clock.now = clock.now.Add(59 * time.Minute)
	_, err := b.Get(ctx, "k")
	assert.NoError(t, err)

	clock.now = clock.now.Add(time.Minute)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNil)
	assert.Empty(t, b.Keys())
}

func TestMemoryBackend_SetClearsTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewMemoryBackend(WithMemoryClock(clock.Now))

	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Expire(ctx, "k", time.Second))
	require.NoError(t, b.Set(ctx, "k", "v2"))

	clock.now = clock.now.Add(time.Hour)
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestMemoryBackend_CompareAndSwap(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *MemoryBackend)
		old     *string
		value   string
		wantOK  bool
		wantVal string
	}{
		{
			name:    "create when absent",
			setup:   func(b *MemoryBackend) {},
			old:     nil,
			value:   "new",
			wantOK:  true,
			wantVal: "new",
		},
		{
			name: "create rejected when present",
			setup: func(b *MemoryBackend) {
				_ = b.Set(context.Background(), "k", "cur")
			},
			old:     nil,
			value:   "new",
			wantOK:  false,
			wantVal: "cur",
		},
		{
			name: "swap when matching",
			setup: func(b *MemoryBackend) {
				_ = b.Set(context.Background(), "k", "cur")
			},
			old:     lo.ToPtr("cur"),
			value:   "new",
			wantOK:  true,
			wantVal: "new",
		},
		{
			name: "swap rejected on stale value",
			setup: func(b *MemoryBackend) {
				_ = b.Set(context.Background(), "k", "cur")
			},
			old:     lo.ToPtr("stale"),
			value:   "new",
			wantOK:  false,
			wantVal: "cur",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemoryBackend()
			tt.setup(b)

			ok, err := b.CompareAndSwap(context.Background(), "k", tt.old, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			got, err := b.Get(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, tt.wantVal, got)
		})
	}

	t.Run("swap rejected when absent", func(t *testing.T) {
		b := NewMemoryBackend()
		ok, err := b.CompareAndSwap(context.Background(), "k", lo.ToPtr("cur"), "new")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemoryBackend_CanceledContext(t *testing.T) {
	b := NewMemoryBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Set(ctx, "k", "v"), context.Canceled)
	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBackend_Scan(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	for _, key := range []string{"wins:index", "wins:b", "wins:a", "wins-image:img_1", "other"} {
		require.NoError(t, b.Set(ctx, key, "v"))
	}

	keys, err := b.Scan(ctx, "wins:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"wins:a", "wins:b", "wins:index"}, keys)

	keys, err = b.Scan(ctx, "wins-image:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"wins-image:img_1"}, keys)

	_, err = b.Scan(ctx, "[")
	assert.Error(t, err)
}
