//go:generate mockgen -package=sse -destination=mock.go -source=interfaces.go

package sse

// ISource 是訊息來源，redis.IConsumer 與 LocalSource 都滿足此介面
type ISource[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// IChannel 定義了 SSE 頻道的介面
type IChannel[T any] interface {
	// Subscribe 建立一個新的訂閱並返回接收訊息的通道
	Subscribe() <-chan T
	// Unsubscribe 取消指定通道的訂閱
	Unsubscribe(ch <-chan T)
	// UnsubscribeAll 取消所有訂閱
	UnsubscribeAll()
	// Broadcast 將訊息廣播給所有訂閱者，返回因緩衝區已滿而略過的訂閱者數量
	Broadcast(message T) int
	// Len 返回目前的訂閱者數量
	Len() int
}

// IConnectionManager 定義了 SSE 連線管理員的介面
type IConnectionManager[T any] interface {
	// Start 啟動 ConnectionManager，開始接收來源的訊息並廣播。
	// 應在呼叫其他方法前先呼叫此方法。
	Start()
	// Done 停止 ConnectionManager，關閉所有訂閱者的通道。
	Done()
	// Subscribe 註冊一個新的連線，返回接收訊息的通道。
	Subscribe() (<-chan T, error)
	// Unsubscribe 取消連線的訂閱。
	Unsubscribe(ch <-chan T)
}
