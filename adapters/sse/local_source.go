package sse

import (
	"context"
	"errors"
	"sync"

	"github.com/smallnest/chanx"
)

// ErrSourceClosed 表示 LocalSource 尚未啟動或已關閉
var ErrSourceClosed = errors.New("source is closed")

// LocalSource 是行程內的訊息來源，沒有 Redis Stream 時用來直接把事件交給 ConnectionManager。
// Publish 放入無上限的緩衝區，不會阻塞呼叫者。
type LocalSource[T any] struct {
	upstream   *chanx.UnboundedChan[T]
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
	closed     bool
	bufferSize int
}

func NewLocalSource[T any](bufferSize int) *LocalSource[T] {
	return &LocalSource[T]{closed: true, bufferSize: bufferSize}
}

func (s *LocalSource[T]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.upstream = chanx.NewUnboundedChan[T](ctx, s.bufferSize)
	s.cancelFunc = cancel
	s.closed = false
}

// Subscribe 返回輸出通道，Close 之後通道會被關閉
func (s *LocalSource[T]) Subscribe() <-chan T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.upstream == nil {
		return nil
	}
	return s.upstream.Out
}

func (s *LocalSource[T]) Publish(data T) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSourceClosed
	}
	s.upstream.In <- data
	return nil
}

func (s *LocalSource[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelFunc()
}
