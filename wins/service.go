package wins

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"winsboard/adapters/kv"
	"winsboard/models"
)

const (
	defaultUserName = "Anonymous"
	defaultUserTier = models.TierFree
)

// Config 是 Service 的設定，建立時傳入，之後不再變動
type Config struct {
	// AdminSecret 是刪除戰績所需的管理員憑證，空字串代表拒絕所有刪除
	AdminSecret string
	// MaxAttempts 是 compare-and-swap 衝突時的最大嘗試次數
	MaxAttempts int
	// RetryBackoff 是第一次重試前的退避時間，之後每次加倍
	RetryBackoff time.Duration
	// ListConcurrency 是列出戰績時同時讀取的上限
	ListConcurrency int
	// IdempotencyTTL 是 Idempotency-Key 的保存期限
	IdempotencyTTL time.Duration
}

// DefaultConfig 回傳預設設定
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		RetryBackoff:    20 * time.Millisecond,
		ListConcurrency: 8,
		IdempotencyTTL:  DefaultIdempotencyTTL,
	}
}

type ServiceOption func(*Service)

// WithServiceLogger 設定日誌記錄器
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceClock 設定取得目前時間的函數
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithEventPublisher 設定戰績事件的發佈者
func WithEventPublisher(publisher IEventPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// Service 負責新增、列出、按讚與刪除戰績
type Service struct {
	blobs       IBlobStore
	records     *RecordStore
	index       *IndexManager
	idempotency *idempotencyGuard
	publisher   IEventPublisher
	logger      *slog.Logger
	now         func() time.Time
	config      Config
}

func NewService(backend kv.IBackend, blobs IBlobStore, config Config, opts ...ServiceOption) (*Service, error) {
	const op = "NewService"
	if backend == nil {
		return nil, fmt.Errorf("[%s] backend cannot be nil", op)
	}
	if blobs == nil {
		return nil, fmt.Errorf("[%s] blob store cannot be nil", op)
	}
	if config.ListConcurrency <= 0 {
		config.ListConcurrency = 1
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = DefaultIdempotencyTTL
	}

	s := &Service{
		blobs:  blobs,
		logger: slog.Default(),
		now:    time.Now,
		config: config,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("caller", "WinsService"))

	writer := newOptimisticWriter(backend, config.MaxAttempts, config.RetryBackoff, s.logger)
	if writer.cas == nil {
		s.logger.Warn("Backend has no compare-and-swap, concurrent updates are last-writer-wins")
	}
	s.records = newRecordStore(backend, writer)
	s.index = newIndexManager(writer)
	s.idempotency = &idempotencyGuard{
		backend: backend,
		writer:  writer,
		ttl:     config.IdempotencyTTL,
		logger:  s.logger,
	}
	return s, nil
}

// Records 回傳底層的 RecordStore
func (s *Service) Records() *RecordStore {
	return s.records
}

// Index 回傳底層的 IndexManager
func (s *Service) Index() *IndexManager {
	return s.index
}

// Submit 儲存已編碼的圖片並回傳圖片 ID
func (s *Service) Submit(ctx context.Context, payload string) (string, error) {
	const op = "Service.Submit"
	if payload == "" {
		return "", validationError(op, "imageBase64 required")
	}
	return s.blobs.Put(ctx, payload)
}

// Image 取得圖片
func (s *Service) Image(ctx context.Context, id string) (string, error) {
	const op = "Service.Image"
	if id == "" {
		return "", validationError(op, "id required")
	}
	return s.blobs.Get(ctx, id)
}

// Post 建立新的戰績。先寫入戰績本身，最後才加入 index。
// idempotencyKey 非空時，相同 key 的重送會回傳第一次建立的戰績。
func (s *Service) Post(ctx context.Context, req models.PostRequest, idempotencyKey string) (models.WinRecord, error) {
	const op = "Service.Post"
	amount := NormalizeAmount(req.AmountWon)
	if req.ImageID == "" || amount == "" {
		return models.WinRecord{}, validationError(op, "imageId and amountWon are required")
	}

	id, err := NewRecordID()
	if err != nil {
		return models.WinRecord{}, storageError(op, "generate record id", err)
	}

	if idempotencyKey != "" {
		existing, err := s.idempotency.Reserve(ctx, idempotencyKey, id)
		if err != nil {
			return models.WinRecord{}, err
		}
		if existing != "" {
			record, err := s.records.Get(ctx, existing)
			if err != nil {
				return models.WinRecord{}, err
			}
			if record == nil {
				return models.WinRecord{}, fmt.Errorf("[%s] Win %s created by this idempotency key no longer exists: %w", op, existing, ErrNotFound)
			}
			s.logger.Debug("Replay idempotent post", slog.String("id", existing))
			return *record, nil
		}
	}

	record := models.WinRecord{
		ID:        id,
		ImageID:   req.ImageID,
		Channel:   models.Channel(req.Channel),
		AmountWon: amount,
		Comment:   req.Comment,
		UserName:  lo.CoalesceOrEmpty(req.UserName, defaultUserName),
		UserID:    req.UserID,
		UserTier:  models.Tier(lo.CoalesceOrEmpty(req.UserTier, string(defaultUserTier))),
		Fires:     0,
		CreatedAt: s.now().UTC(),
	}

	if err := s.records.Create(ctx, record); err != nil {
		s.releaseIdempotency(ctx, idempotencyKey)
		return models.WinRecord{}, err
	}
	if err := s.index.Append(ctx, id); err != nil {
		// index 是唯一的存活依據，加入失敗時盡力移除已寫入的戰績
		if delErr := s.records.Delete(ctx, id); delErr != nil {
			s.logger.Warn("Fail to remove unindexed record", slog.String("id", id), slog.Any("error", delErr))
		}
		s.releaseIdempotency(ctx, idempotencyKey)
		return models.WinRecord{}, err
	}
	if idempotencyKey != "" {
		s.idempotency.Finalize(ctx, idempotencyKey, id)
	}

	s.publish(models.WinEvent{Type: models.WinEventPosted, ID: id, Win: &record, At: record.CreatedAt})
	return record, nil
}

// Now 回傳服務使用的目前時間，與統計資訊共用同一個時鐘
func (s *Service) Now() time.Time {
	return s.now()
}

// List 回傳依建立時間由新到舊排序的存活戰績與統計資訊。
// index 內找不到對應戰績的 ID 會被略過。
func (s *Service) List(ctx context.Context) ([]models.WinRecord, models.Stats, error) {
	ids, err := s.index.ListIDs(ctx)
	if err != nil {
		return nil, models.Stats{}, err
	}
	ids = lo.Uniq(ids)

	loaded := make([]*models.WinRecord, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ListConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			record, err := s.records.Get(gctx, id)
			if err != nil {
				if errors.Is(err, ErrStorageFailure) {
					return err
				}
				s.logger.Warn("Skip unreadable record", slog.String("id", id), slog.Any("error", err))
				return nil
			}
			loaded[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.Stats{}, err
	}

	records := make([]models.WinRecord, 0, len(loaded))
	for _, record := range loaded {
		if record != nil {
			records = append(records, *record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, ComputeStats(records, s.now()), nil
}

// React 將戰績的 fires 加一並回傳新的數量
func (s *Service) React(ctx context.Context, id string) (int64, error) {
	const op = "Service.React"
	if id == "" {
		return 0, validationError(op, "id required")
	}
	record, err := s.records.Update(ctx, id, func(record *models.WinRecord) error {
		record.Fires++
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(models.WinEvent{Type: models.WinEventFired, ID: id, Fires: record.Fires, At: s.now().UTC()})
	return record.Fires, nil
}

// Authorize 以固定時間比較管理員憑證
func (s *Service) Authorize(credential string) error {
	const op = "Service.Authorize"
	secret := s.config.AdminSecret
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(credential)) != 1 {
		return fmt.Errorf("[%s] Invalid admin credential: %w", op, ErrUnauthorized)
	}
	return nil
}

// Delete 刪除戰績。順序為：移出 index、刪除圖片（盡力而為）、刪除戰績本身，
// 每個步驟都可以安全重試。回傳被刪除的戰績，戰績本來就不存在時回傳 nil。
func (s *Service) Delete(ctx context.Context, id, credential string) (*models.WinRecord, error) {
	const op = "Service.Delete"
	if err := s.Authorize(credential); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, validationError(op, "id required")
	}

	record, err := s.records.Get(ctx, id)
	if errors.Is(err, ErrStorageFailure) {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("Delete unreadable record", slog.String("id", id), slog.Any("error", err))
	}
	if err := s.index.Remove(ctx, id); err != nil {
		return nil, err
	}
	if record != nil && record.ImageID != "" {
		if err := s.blobs.Delete(ctx, record.ImageID); err != nil {
			s.logger.Warn("Fail to delete image", slog.String("id", id), slog.String("imageId", record.ImageID), slog.Any("error", err))
		}
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.publish(models.WinEvent{Type: models.WinEventDeleted, ID: id, At: s.now().UTC()})
	return record, nil
}

func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if key != "" {
		s.idempotency.release(ctx, key)
	}
}

func (s *Service) publish(event models.WinEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("Fail to publish win event", slog.String("type", string(event.Type)), slog.String("id", event.ID), slog.Any("error", err))
	}
}
