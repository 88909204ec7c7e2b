package sse

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrManagerClosed 表示 ConnectionManager 已停止
var ErrManagerClosed = errors.New("connection manager is closed")

type managerOptions struct {
	logger     *slog.Logger
	bufferSize int
}

type ManagerOption func(*managerOptions)

// WithManagerLogger 設置日誌記錄器
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithManagerBufferSize 設置每個連線的緩衝大小
func WithManagerBufferSize(size int) ManagerOption {
	return func(o *managerOptions) {
		o.bufferSize = size
	}
}

// ConnectionManager 將來源的訊息廣播給所有 SSE 連線。
// 來源為 Redis Stream 時，每個服務實例都會收到所有訊息，因此連線可以落在任一實例。
type ConnectionManager[T any] struct {
	source  ISource[T]
	channel *Channel[T]
	logger  *slog.Logger

	mu     sync.RWMutex   // 保護 active
	wg     sync.WaitGroup // 用於等待廣播 goroutine 完成
	active bool
}

func NewConnectionManager[T any](source ISource[T], opts ...ManagerOption) *ConnectionManager[T] {
	options := managerOptions{
		logger:     slog.Default(),
		bufferSize: 16,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &ConnectionManager[T]{
		source:  source,
		channel: NewChannel[T](options.bufferSize),
		logger:  options.logger.With(slog.String("caller", "ConnectionManager")),
	}
}

// Start 啟動來源並開始廣播，重複呼叫不會有作用
func (cm *ConnectionManager[T]) Start() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.active {
		return
	}
	cm.active = true
	cm.source.Start()
	messages := cm.source.Subscribe()

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for msg := range messages {
			if dropped := cm.channel.Broadcast(msg); dropped > 0 {
				cm.logger.Warn("Drop message for slow connections", slog.Int("dropped", dropped))
			}
		}
	}()
}

// Done 停止來源，等待廣播結束後關閉所有連線的通道
func (cm *ConnectionManager[T]) Done() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return
	}
	cm.active = false
	cm.source.Close()
	cm.wg.Wait()
	cm.channel.UnsubscribeAll()
}

func (cm *ConnectionManager[T]) Subscribe() (<-chan T, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.active {
		return nil, ErrManagerClosed
	}
	ch := cm.channel.Subscribe()
	cm.logger.Debug("Connection subscribed", slog.Int("connections", cm.channel.Len()))
	return ch, nil
}

func (cm *ConnectionManager[T]) Unsubscribe(ch <-chan T) {
	cm.channel.Unsubscribe(ch)
}

// Connections 返回目前的連線數量
func (cm *ConnectionManager[T]) Connections() int {
	return cm.channel.Len()
}
