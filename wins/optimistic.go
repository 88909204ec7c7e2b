package wins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"winsboard/adapters/kv"
)

const maxBackoff = 500 * time.Millisecond

// mutateFunc 收到目前的值（nil 表示 key 不存在）並回傳新的值。
// 回傳 nil 表示不需要寫入。
type mutateFunc func(current *string) (*string, error)

// optimisticWriter 對單一 key 做 read-modify-write。
// 後端支援 compare-and-swap 時以目前的完整序列化值作為版本，衝突時重試；
// 否則退回 last-writer-wins。
type optimisticWriter struct {
	backend     kv.IBackend
	cas         kv.ICompareAndSwap
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

func newOptimisticWriter(backend kv.IBackend, maxAttempts int, backoff time.Duration, logger *slog.Logger) *optimisticWriter {
	cas, _ := backend.(kv.ICompareAndSwap)
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &optimisticWriter{
		backend:     backend,
		cas:         cas,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// read 取得目前的值，key 不存在時回傳 nil
func (w *optimisticWriter) read(ctx context.Context, key string) (*string, error) {
	const op = "optimisticWriter.read"
	value, err := w.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(op, "read "+key, err)
	}
	return &value, nil
}

// Update 套用 fn 並回傳最後寫入（或未變更）的值
func (w *optimisticWriter) Update(ctx context.Context, key string, fn mutateFunc) (*string, error) {
	const op = "optimisticWriter.Update"
	if w.cas == nil {
		current, err := w.read(ctx, key)
		if err != nil {
			return nil, err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return current, err
		}
		if err := w.backend.Set(ctx, key, *next); err != nil {
			return nil, storageError(op, "write "+key, err)
		}
		return next, nil
	}

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := w.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
		current, err := w.read(ctx, key)
		if err != nil {
			return nil, err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return current, err
		}
		swapped, err := w.cas.CompareAndSwap(ctx, key, current, *next)
		if err != nil {
			return nil, storageError(op, "compare-and-swap "+key, err)
		}
		if swapped {
			return next, nil
		}
		w.logger.Debug("Concurrent modification detected, retrying", slog.String("key", key), slog.Int("attempt", attempt+1))
	}
	w.logger.Warn("Retry budget exhausted", slog.String("key", key), slog.Int("attempts", w.maxAttempts))
	return nil, fmt.Errorf("[%s] Fail to update %s after %d attempts: %w", op, key, w.maxAttempts, ErrConflict)
}

// wait 以指數退避加上隨機抖動等待下一次重試
func (w *optimisticWriter) wait(ctx context.Context, attempt int) error {
	if w.backoff <= 0 {
		return ctx.Err()
	}
	ceiling := w.backoff
	for i := 1; i < attempt && ceiling < maxBackoff; i++ {
		ceiling *= 2
	}
	ceiling = min(ceiling, maxBackoff)
	delay := ceiling/2 + time.Duration(rand.Int64N(int64(ceiling/2)+1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
