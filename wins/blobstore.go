package wins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"winsboard/adapters/kv"
)

// DefaultBlobTTL 是圖片的保存期限（90 天）
const DefaultBlobTTL = 90 * 24 * time.Hour

// KVBlobStore 把圖片直接存放在 key-value 後端，並設定固定的保存期限
type KVBlobStore struct {
	backend kv.IBackend
	ttl     time.Duration
	logger  *slog.Logger
}

type KVBlobStoreOption func(*KVBlobStore)

// WithBlobTTL 設定圖片的保存期限
func WithBlobTTL(ttl time.Duration) KVBlobStoreOption {
	return func(s *KVBlobStore) {
		s.ttl = ttl
	}
}

// WithBlobLogger 設定日誌記錄器
func WithBlobLogger(logger *slog.Logger) KVBlobStoreOption {
	return func(s *KVBlobStore) {
		s.logger = logger
	}
}

func NewKVBlobStore(backend kv.IBackend, opts ...KVBlobStoreOption) *KVBlobStore {
	s := &KVBlobStore{
		backend: backend,
		ttl:     DefaultBlobTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("caller", "KVBlobStore"))
	return s
}

// Put 寫入圖片後立即設定保存期限。
// 設定期限失敗時會盡力刪除剛寫入的圖片，避免留下永不過期的資料。
func (s *KVBlobStore) Put(ctx context.Context, payload string) (string, error) {
	const op = "KVBlobStore.Put"
	id, err := NewBlobID()
	if err != nil {
		return "", storageError(op, "generate blob id", err)
	}
	key := BlobKey(id)
	if err := s.backend.Set(ctx, key, payload); err != nil {
		return "", storageError(op, "store image", err)
	}
	if err := s.backend.Expire(ctx, key, s.ttl); err != nil {
		if delErr := s.backend.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Fail to remove image without expiry", slog.String("imageId", id), slog.Any("error", delErr))
		}
		return "", storageError(op, "set image expiry", err)
	}
	return id, nil
}

func (s *KVBlobStore) Get(ctx context.Context, id string) (string, error) {
	const op = "KVBlobStore.Get"
	payload, err := s.backend.Get(ctx, BlobKey(id))
	if errors.Is(err, kv.ErrNil) {
		return "", fmt.Errorf("[%s] Image %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return "", storageError(op, "retrieve image", err)
	}
	return payload, nil
}

func (s *KVBlobStore) Delete(ctx context.Context, id string) error {
	const op = "KVBlobStore.Delete"
	if err := s.backend.Delete(ctx, BlobKey(id)); err != nil {
		return storageError(op, "delete image", err)
	}
	return nil
}
