package wins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// IndexManager 維護存活戰績 ID 的有序集合，整個集合序列化為單一 JSON 陣列。
// 每次變更都會讀取完整的 index，在記憶體中修改後寫回。
type IndexManager struct {
	writer *optimisticWriter
}

func newIndexManager(writer *optimisticWriter) *IndexManager {
	return &IndexManager{writer: writer}
}

// ListIDs 回傳 index 內的所有 ID，index 不存在時回傳空陣列
func (m *IndexManager) ListIDs(ctx context.Context) ([]string, error) {
	const op = "IndexManager.ListIDs"
	raw, err := m.writer.read(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	ids, err := decodeIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("[%s] Index is corrupted: %w, err=%w", op, ErrStorageFailure, err)
	}
	return ids, nil
}

// Append 將 ID 加到 index 尾端，ID 已存在時不做任何事
func (m *IndexManager) Append(ctx context.Context, id string) error {
	const op = "IndexManager.Append"
	_, err := m.writer.Update(ctx, IndexKey, func(current *string) (*string, error) {
		ids, err := decodeIndex(current)
		if err != nil {
			return nil, fmt.Errorf("[%s] Index is corrupted: %w, err=%w", op, ErrStorageFailure, err)
		}
		if lo.Contains(ids, id) {
			return nil, nil
		}
		return encodeIndex(append(ids, id))
	})
	return err
}

// Remove 將 ID 從 index 移除，ID 不存在時不做任何事
func (m *IndexManager) Remove(ctx context.Context, id string) error {
	const op = "IndexManager.Remove"
	_, err := m.writer.Update(ctx, IndexKey, func(current *string) (*string, error) {
		ids, err := decodeIndex(current)
		if err != nil {
			return nil, fmt.Errorf("[%s] Index is corrupted: %w, err=%w", op, ErrStorageFailure, err)
		}
		if !lo.Contains(ids, id) {
			return nil, nil
		}
		return encodeIndex(lo.Without(ids, id))
	})
	return err
}

func decodeIndex(raw *string) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(*raw), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func encodeIndex(ids []string) (*string, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	encoded := string(data)
	return &encoded, nil
}
