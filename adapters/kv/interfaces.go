//go:generate mockgen -package=kv -destination=mock.go -source=interfaces.go

package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNil 表示 key 不存在（或已過期）
var ErrNil = errors.New("kv: key does not exist")

// IBackend 定義了遠端 key-value 儲存必須提供的單一 key 操作介面，
// 各操作之間沒有任何原子性保證
type IBackend interface {
	// Get 取得 key 的值，key 不存在時返回 ErrNil
	Get(ctx context.Context, key string) (string, error)
	// Set 覆寫 key 的值
	Set(ctx context.Context, key, value string) error
	// Delete 刪除 key，key 不存在時不視為錯誤
	Delete(ctx context.Context, key string) error
	// Expire 設定 key 的存活時間
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// ICompareAndSwap 定義了單一 key 的 compare-and-swap 操作介面。
// old 為 nil 代表 key 必須不存在。
type ICompareAndSwap interface {
	CompareAndSwap(ctx context.Context, key string, old *string, value string) (bool, error)
}

// IScanner 定義了依 glob pattern 列舉 key 的操作介面，僅供背景維護工作使用
type IScanner interface {
	Scan(ctx context.Context, match string) ([]string, error)
}
