package redis

import (
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	messageDataField  = "data"
	messageLabelField = "label"
)

// DefaultParseToMessage 以 msgpack 序列化後 base64 編碼，放在 stream message 的 data 欄位
func DefaultParseToMessage[T any](data T) (map[string]any, error) {
	// 檢查是否為指標類型
	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		return nil, ErrPointerType
	}

	bytes, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}

	return map[string]any{
		messageDataField: base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseToMessageWithLabel 在 data 欄位之外加上可讀的 label 欄位，
// 方便直接以 XRANGE 檢視 stream 內容，解析時會忽略 label
func ParseToMessageWithLabel[T any](label func(T) string) func(T) (map[string]any, error) {
	return func(data T) (map[string]any, error) {
		message, err := DefaultParseToMessage(data)
		if err != nil {
			return nil, err
		}
		message[messageLabelField] = label(data)
		return message, nil
	}
}

// DefaultParseFromMessage 從 data 欄位還原資料，空訊息回傳零值
func DefaultParseFromMessage[T any](message map[string]any) (T, error) {
	var result T

	// 檢查是否為指標類型
	if reflect.TypeOf(result).Kind() == reflect.Ptr {
		return result, ErrPointerType
	}

	if len(message) == 0 {
		return result, nil
	}

	dataStr, ok := message[messageDataField].(string)
	if !ok {
		return result, fmt.Errorf("data field not found or invalid type")
	}

	bytes, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return result, fmt.Errorf("base64 decode error: %w", err)
	}

	if err := msgpack.Unmarshal(bytes, &result); err != nil {
		return result, fmt.Errorf("msgpack unmarshal error: %w", err)
	}

	return result, nil
}
