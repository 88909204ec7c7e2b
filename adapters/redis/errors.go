package redis

import "errors"

var (
	ErrProducerClosed = errors.New("producer is closed")
	ErrPointerType    = errors.New("pointer type is not allowed")
)
