package wins

import "strings"

const (
	// IndexKey 存放所有存活戰績 ID 的 JSON 陣列
	IndexKey = "wins:index"

	recordKeyPrefix      = "wins:"
	blobKeyPrefix        = "wins-image:"
	idempotencyKeyPrefix = "wins-idem:"

	// RecordKeyPattern 與 BlobKeyPattern 是給背景掃描使用的 glob pattern
	RecordKeyPattern = recordKeyPrefix + "*"
	BlobKeyPattern   = blobKeyPrefix + "*"
)

// RecordKey 回傳戰績的 key
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// BlobKey 回傳圖片的 key
func BlobKey(id string) string {
	return blobKeyPrefix + id
}

// RecordIDFromKey 從戰績 key 取回戰績 ID，index key 與其他 key 回傳 false
func RecordIDFromKey(key string) (string, bool) {
	if key == IndexKey {
		return "", false
	}
	id, ok := strings.CutPrefix(key, recordKeyPrefix)
	return id, ok && id != ""
}

// BlobIDFromKey 從圖片 key 取回圖片 ID
func BlobIDFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, blobKeyPrefix)
	return id, ok && id != ""
}

func idempotencyKey(key string) string {
	return idempotencyKeyPrefix + key
}
