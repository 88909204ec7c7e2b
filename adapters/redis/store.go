package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"winsboard/adapters/kv"
)

// Store 以 Redis string 實作 kv.IBackend，並透過 Lua 腳本提供 compare-and-swap
type Store struct {
	client  *redis.Client // Redis 客戶端連線
	options StoreOptions  // Store 的配置選項
}

// StoreOptions 定義了 Store 的配置選項
type StoreOptions struct {
	Prefix    string
	ScanCount int64
}

type StoreOption func(*StoreOptions)

// WithStorePrefix 設定 Store 的 key 前綴
func WithStorePrefix(prefix string) StoreOption {
	return func(o *StoreOptions) {
		o.Prefix = prefix
	}
}

// WithStoreScanCount 設定每次 SCAN 的建議數量
func WithStoreScanCount(count int64) StoreOption {
	return func(o *StoreOptions) {
		o.ScanCount = count
	}
}

// NewStore 建立一個新的 Store 實例
func NewStore(client *redis.Client, opts ...StoreOption) *Store {
	options := &StoreOptions{ScanCount: 100}
	for _, opt := range opts {
		opt(options)
	}

	return &Store{
		client:  client,
		options: *options,
	}
}

func (s *Store) key(name string) string {
	return s.options.Prefix + name
}

// Get 取得 key 的值，key 不存在時返回 kv.ErrNil
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "redis.Store.Get"
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", kv.ErrNil
	}
	if err != nil {
		return "", fmt.Errorf("%s: failed to get %s: %w", op, key, err)
	}
	return value, nil
}

// Set 覆寫 key 的值，同時清除既有的 TTL
func (s *Store) Set(ctx context.Context, key, value string) error {
	const op = "redis.Store.Set"
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: failed to set %s: %w", op, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "redis.Store.Delete"
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete %s: %w", op, key, err)
	}
	return nil
}

// Expire 設定 key 的存活時間，key 不存在時不視為錯誤
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	const op = "redis.Store.Expire"
	if err := s.client.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to expire %s: %w", op, key, err)
	}
	return nil
}

// CompareAndSwap 只有在 key 目前的值等於 old（old 為 nil 時為 key 不存在）時才寫入
func (s *Store) CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error) {
	const op = "redis.Store.CompareAndSwap"
	mustExist, expected := kv.CompareAndSwapArgs(old)
	swapped, err := CompareAndSwapScript.Run(ctx, s.client, []string{s.key(key)}, mustExist, expected, value).Int()
	if err != nil {
		return false, fmt.Errorf("%s: failed to execute compare-and-swap script on %s: %w", op, key, err)
	}
	return swapped == 1, nil
}

// Scan 以 SCAN 列舉符合 glob pattern 的 key，回傳的 key 不含前綴
// NOTE: SCAN 可能重複回傳同一個 key，這裡會去除重複
func (s *Store) Scan(ctx context.Context, match string) ([]string, error) {
	const op = "redis.Store.Scan"
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.key(match), s.options.ScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan %s: %w", op, match, err)
		}
		for _, key := range batch {
			keys = append(keys, strings.TrimPrefix(key, s.options.Prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return lo.Uniq(keys), nil
}
