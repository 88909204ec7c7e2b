package wins

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 表示呼叫端提供的資料不合法
	ErrValidation = errors.New("validation error")
	// ErrNotFound 表示戰績或圖片不存在
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized 表示管理員憑證不正確
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorageFailure 表示後端儲存操作失敗
	ErrStorageFailure = errors.New("storage failure")
	// ErrConflict 表示樂觀並行控制的重試次數用盡，呼叫端可以重試
	ErrConflict = errors.New("conflict")
)

// ValidationError 帶有可以直接回傳給呼叫端的訊息，errors.Is(err, ErrValidation) 為 true
type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Op, e.Message, ErrValidation)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(op, msg string) error {
	return &ValidationError{Op: op, Message: msg}
}

func storageError(op, action string, err error) error {
	return fmt.Errorf("[%s] Fail to %s: %w, err=%w", op, action, ErrStorageFailure, err)
}
