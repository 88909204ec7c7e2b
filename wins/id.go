package wins

import (
	"fmt"

	"github.com/google/uuid"
)

const blobIDPrefix = "img_"

// NewRecordID 產生以時間排序的戰績 ID
func NewRecordID() (string, error) {
	const op = "NewRecordID"
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to generate unique id, err=%w", op, err)
	}
	return id.String(), nil
}

// NewBlobID 產生圖片 ID，格式為 img_ 加上 UUIDv7
func NewBlobID() (string, error) {
	const op = "NewBlobID"
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to generate unique id, err=%w", op, err)
	}
	return blobIDPrefix + id.String(), nil
}
