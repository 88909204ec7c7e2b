package wins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"winsboard/adapters/kv"
)

const (
	// DefaultIdempotencyTTL 是 Idempotency-Key 的保存期限
	DefaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 128
	pendingMarker         = "pending:"
)

// idempotencyGuard 記錄 Idempotency-Key 與戰績 ID 的對應。
// 保留中的 key 值為 pending:{id}，完成後改為戰績 ID。
type idempotencyGuard struct {
	backend kv.IBackend
	writer  *optimisticWriter
	ttl     time.Duration
	logger  *slog.Logger
}

// Reserve 嘗試為新的戰績 ID 保留 key。
// 回傳非空字串代表此 key 已對應到既有的戰績；保留中的 key 返回 ErrConflict。
func (g *idempotencyGuard) Reserve(ctx context.Context, key, recordID string) (string, error) {
	const op = "idempotencyGuard.Reserve"
	if len(key) > maxIdempotencyKeyLen {
		return "", validationError(op, "idempotency key too long")
	}
	var existing string
	_, err := g.writer.Update(ctx, idempotencyKey(key), func(current *string) (*string, error) {
		if current == nil {
			value := pendingMarker + recordID
			return &value, nil
		}
		if strings.HasPrefix(*current, pendingMarker) {
			return nil, fmt.Errorf("[%s] Request with the same idempotency key is in progress: %w", op, ErrConflict)
		}
		existing = *current
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	if err := g.backend.Expire(ctx, idempotencyKey(key), g.ttl); err != nil {
		g.release(ctx, key)
		return "", storageError(op, "set idempotency key expiry", err)
	}
	return "", nil
}

// Finalize 將保留中的 key 指向完成建立的戰績
func (g *idempotencyGuard) Finalize(ctx context.Context, key, recordID string) {
	if err := g.backend.Set(ctx, idempotencyKey(key), recordID); err != nil {
		g.logger.Warn("Fail to finalize idempotency key", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := g.backend.Expire(ctx, idempotencyKey(key), g.ttl); err != nil {
		g.logger.Warn("Fail to set idempotency key expiry", slog.String("key", key), slog.Any("error", err))
	}
}

// release 釋放保留中的 key，讓呼叫端可以重試
func (g *idempotencyGuard) release(ctx context.Context, key string) {
	if err := g.backend.Delete(ctx, idempotencyKey(key)); err != nil {
		g.logger.Warn("Fail to release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}
