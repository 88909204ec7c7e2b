package kv

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend 是一個行程內的 key-value 儲存，支援 TTL 與 compare-and-swap。
// 用於開發模式與測試，不會跨行程共享資料。
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type MemoryOption func(*MemoryBackend)

// WithMemoryClock 設定用於判斷過期的時鐘
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		b.now = now
	}
}

// NewMemoryBackend 建立一個空的 MemoryBackend
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// lookup must be called with mu held.
func (b *MemoryBackend) lookup(key string) (memoryEntry, bool) {
	entry, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !b.now().Before(entry.expiresAt) {
		delete(b.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.lookup(key)
	if !ok {
		return "", ErrNil
	}
	return entry.value, nil
}

// Set 覆寫 key 的值並清除既有的 TTL，與 Redis SET 的行為一致
func (b *MemoryBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = memoryEntry{value: value}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Expire 對不存在的 key 不做任何事
func (b *MemoryBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.lookup(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		delete(b.entries, key)
		return nil
	}
	entry.expiresAt = b.now().Add(ttl)
	b.entries[key] = entry
	return nil
}

func (b *MemoryBackend) CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.lookup(key)
	switch {
	case old == nil && ok:
		return false, nil
	case old != nil && (!ok || entry.value != *old):
		return false, nil
	}
	b.entries[key] = memoryEntry{value: value}
	return true, nil
}

// Scan 以 glob pattern 列舉未過期的 key，結果依字典序排列
func (b *MemoryBackend) Scan(ctx context.Context, match string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for _, key := range b.Keys() {
		ok, err := path.Match(match, key)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys 回傳目前所有未過期的 key，僅供測試與除錯使用
func (b *MemoryBackend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		if _, ok := b.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
