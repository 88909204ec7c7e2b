//go:generate mockgen -package=wins -destination=mock.go -source=interfaces.go

package wins

import (
	"context"

	"winsboard/models"
)

// IBlobStore 定義了圖片儲存的操作介面，圖片寫入後不可修改
type IBlobStore interface {
	// Put 儲存圖片並回傳新的圖片 ID，失敗時不會回傳 ID
	Put(ctx context.Context, payload string) (string, error)
	// Get 取得圖片，不存在或已過期時返回 ErrNotFound
	Get(ctx context.Context, id string) (string, error)
	// Delete 刪除圖片，圖片不存在時不視為錯誤
	Delete(ctx context.Context, id string) error
}

// IEventPublisher 定義了戰績事件的發佈介面
type IEventPublisher interface {
	Publish(data models.WinEvent) error
}
