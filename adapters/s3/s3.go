package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"winsboard/wins"
)

// ExpiresAtMetadata 是記錄圖片到期時間的 object metadata 欄位
const ExpiresAtMetadata = "expires-at"

// IObjectAPI 是 BlobStore 用到的 S3 操作，*s3.Client 即滿足此介面
type IObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type BlobStoreOption func(*BlobStore)

// WithBlobPrefix 設定 object key 的前綴
func WithBlobPrefix(prefix string) BlobStoreOption {
	return func(s *BlobStore) {
		s.prefix = prefix
	}
}

// WithBlobTTL 設定圖片的保存期限
func WithBlobTTL(ttl time.Duration) BlobStoreOption {
	return func(s *BlobStore) {
		s.ttl = ttl
	}
}

// WithMaxObjectSize 設定讀取單一圖片的大小上限，0 表示不限制
func WithMaxObjectSize(size int64) BlobStoreOption {
	return func(s *BlobStore) {
		s.maxSize = size
	}
}

// WithBlobClock 設定判斷到期用的時鐘
func WithBlobClock(now func() time.Time) BlobStoreOption {
	return func(s *BlobStore) {
		s.now = now
	}
}

// WithBlobLogger 設定日誌記錄器
func WithBlobLogger(logger *slog.Logger) BlobStoreOption {
	return func(s *BlobStore) {
		s.logger = logger
	}
}

// BlobStore 將圖片存放在 S3 相容的儲存桶中。
// S3 沒有單一 object 的 TTL，到期時間寫在 metadata，讀取時判斷；
// 實際清除交給儲存桶的 lifecycle rule。
type BlobStore struct {
	client  IObjectAPI
	bucket  string
	prefix  string
	ttl     time.Duration
	maxSize int64
	now     func() time.Time
	logger  *slog.Logger
}

func NewBlobStore(client IObjectAPI, bucket string, opts ...BlobStoreOption) (*BlobStore, error) {
	const op = "NewBlobStore"
	if client == nil {
		return nil, fmt.Errorf("[%s] client cannot be nil", op)
	}
	if bucket == "" {
		return nil, fmt.Errorf("[%s] bucket cannot be empty", op)
	}
	s := &BlobStore{
		client: client,
		bucket: bucket,
		prefix: "wins-image/",
		ttl:    wins.DefaultBlobTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("caller", "S3BlobStore"), slog.String("bucket", bucket))
	return s, nil
}

func (s *BlobStore) key(id string) string {
	return s.prefix + id
}

// Put 以新的圖片 ID 寫入 payload
func (s *BlobStore) Put(ctx context.Context, payload string) (string, error) {
	const op = "S3BlobStore.Put"
	id, err := wins.NewBlobID()
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to generate image id: %w, err=%w", op, wins.ErrStorageFailure, err)
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        strings.NewReader(payload),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			ExpiresAtMetadata: expiresAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload image to S3: %w, err=%w", op, wins.ErrStorageFailure, err)
	}
	return id, nil
}

// Get 取得圖片，不存在或已過期時返回 wins.ErrNotFound
func (s *BlobStore) Get(ctx context.Context, id string) (string, error) {
	const op = "S3BlobStore.Get"
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if isNotFound(err) {
		return "", fmt.Errorf("[%s] Image %s not found: %w", op, id, wins.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to get image from S3: %w, err=%w", op, wins.ErrStorageFailure, err)
	}
	defer out.Body.Close()

	if s.expired(out.Metadata) {
		return "", fmt.Errorf("[%s] Image %s expired: %w", op, id, wins.ErrNotFound)
	}

	var body io.Reader = out.Body
	if s.maxSize > 0 {
		body = NewMaxSizeReader(out.Body, s.maxSize)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to read image: %w, err=%w", op, wins.ErrStorageFailure, err)
	}
	return string(payload), nil
}

// Delete 刪除圖片，S3 的 DeleteObject 對不存在的 object 也會成功
func (s *BlobStore) Delete(ctx context.Context, id string) error {
	const op = "S3BlobStore.Delete"
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("[%s] Fail to delete image from S3: %w, err=%w", op, wins.ErrStorageFailure, err)
	}
	return nil
}

func (s *BlobStore) expired(metadata map[string]string) bool {
	raw, ok := metadata[ExpiresAtMetadata]
	if !ok {
		return false
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("Ignore invalid expiry metadata", slog.String("value", raw))
		return false
	}
	return !s.now().Before(expiresAt)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
