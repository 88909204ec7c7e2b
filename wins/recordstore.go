package wins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"winsboard/adapters/kv"
	"winsboard/models"
)

// RecordStore 負責單筆戰績的讀寫，每筆戰績存放在 wins:{id}
type RecordStore struct {
	backend kv.IBackend
	writer  *optimisticWriter
}

func newRecordStore(backend kv.IBackend, writer *optimisticWriter) *RecordStore {
	return &RecordStore{backend: backend, writer: writer}
}

func (s *RecordStore) Create(ctx context.Context, record models.WinRecord) error {
	const op = "RecordStore.Create"
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("[%s] Fail to marshal record, err=%w", op, err)
	}
	if err := s.backend.Set(ctx, RecordKey(record.ID), string(data)); err != nil {
		return storageError(op, "write record", err)
	}
	return nil
}

// Get 取得戰績，不存在時回傳 nil
func (s *RecordStore) Get(ctx context.Context, id string) (*models.WinRecord, error) {
	const op = "RecordStore.Get"
	raw, err := s.backend.Get(ctx, RecordKey(id))
	if errors.Is(err, kv.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(op, "read record", err)
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("[%s] Record %s is corrupted, err=%w", op, id, err)
	}
	return record, nil
}

// Update 讀取戰績並交給 mutator 修改後寫回，戰績不存在時返回 ErrNotFound
func (s *RecordStore) Update(ctx context.Context, id string, mutator func(*models.WinRecord) error) (models.WinRecord, error) {
	const op = "RecordStore.Update"
	var updated models.WinRecord
	_, err := s.writer.Update(ctx, RecordKey(id), func(current *string) (*string, error) {
		if current == nil {
			return nil, fmt.Errorf("[%s] Record %s: %w", op, id, ErrNotFound)
		}
		record, err := decodeRecord(*current)
		if err != nil {
			return nil, fmt.Errorf("[%s] Record %s is corrupted, err=%w", op, id, err)
		}
		if err := mutator(record); err != nil {
			return nil, err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to marshal record, err=%w", op, err)
		}
		updated = *record
		next := string(data)
		return &next, nil
	})
	if err != nil {
		return models.WinRecord{}, err
	}
	return updated, nil
}

// Delete 刪除戰績，不存在時不做任何事
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	const op = "RecordStore.Delete"
	if err := s.backend.Delete(ctx, RecordKey(id)); err != nil {
		return storageError(op, "delete record", err)
	}
	return nil
}

func decodeRecord(raw string) (*models.WinRecord, error) {
	var record models.WinRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	if record.Fires < 0 {
		record.Fires = 0
	}
	return &record, nil
}
