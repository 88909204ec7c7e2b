package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"winsboard/wins"
)

// BlobCache 是 wins.IBlobStore 的讀取快取。圖片寫入後不會再變動，
// 因此只需在刪除時讓本機的快取失效；其他實例最多在 TTL 內仍回傳已刪除的圖片。
type BlobCache struct {
	next   wins.IBlobStore
	lru    *expirable.LRU[string, string]
	logger *slog.Logger
}

type BlobCacheOption func(*BlobCache)

// WithBlobCacheLogger 設定日誌記錄器
func WithBlobCacheLogger(logger *slog.Logger) BlobCacheOption {
	return func(c *BlobCache) {
		c.logger = logger
	}
}

// NewBlobCache 建立快取，size 為 0 時直接回傳 next
func NewBlobCache(next wins.IBlobStore, size int, ttl time.Duration, opts ...BlobCacheOption) wins.IBlobStore {
	if size <= 0 {
		return next
	}
	c := &BlobCache{
		next:   next,
		lru:    expirable.NewLRU[string, string](size, nil, ttl),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("caller", "BlobCache"))
	return c
}

// Put 寫入後直接放入快取，上傳後通常會馬上被讀取
func (c *BlobCache) Put(ctx context.Context, payload string) (string, error) {
	id, err := c.next.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	c.lru.Add(id, payload)
	return id, nil
}

func (c *BlobCache) Get(ctx context.Context, id string) (string, error) {
	if payload, ok := c.lru.Get(id); ok {
		c.logger.Debug("Cache hit", slog.String("imageId", id))
		return payload, nil
	}
	payload, err := c.next.Get(ctx, id)
	if err != nil {
		return "", err
	}
	c.lru.Add(id, payload)
	return payload, nil
}

// Delete 先讓快取失效，即使底層刪除失敗也不會再回傳舊資料
func (c *BlobCache) Delete(ctx context.Context, id string) error {
	c.lru.Remove(id)
	return c.next.Delete(ctx, id)
}

// Len 回傳目前快取的圖片數量
func (c *BlobCache) Len() int {
	return c.lru.Len()
}
