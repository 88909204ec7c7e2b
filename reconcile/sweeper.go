package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"winsboard/adapters/kv"
	"winsboard/adapters/redis"
	"winsboard/models"
	"winsboard/wins"
)

// DefaultGracePeriod 是不在 index 中的戰績被視為孤兒前的等待時間，
// 新增戰績時會先寫入戰績再加入 index，這段期間的戰績不應被清除
const DefaultGracePeriod = 10 * time.Minute

// Report 是一次掃描的結果
type Report struct {
	// Skipped 代表其他實例正在掃描，本次沒有執行
	Skipped bool
	// OrphanRecords 是不在 index 中且超過寬限期的戰績 ID
	OrphanRecords []string
	// DanglingIndex 是 index 中找不到戰績的 ID
	DanglingIndex []string
	// UnreferencedBlobs 是沒有任何戰績引用的圖片 ID，只回報不刪除，由 TTL 自然過期
	UnreferencedBlobs []string
	// Removed 代表孤兒戰績與失效的 index 項目已被清除
	Removed bool
}

// Empty 回報是否沒有任何需要處理的項目
func (r Report) Empty() bool {
	return len(r.OrphanRecords) == 0 && len(r.DanglingIndex) == 0 && len(r.UnreferencedBlobs) == 0
}

type Option func(*Sweeper)

// WithGracePeriod 設定孤兒戰績的寬限期
func WithGracePeriod(d time.Duration) Option {
	return func(s *Sweeper) {
		s.grace = d
	}
}

// WithRemove 設定是否清除孤兒戰績與失效的 index 項目
func WithRemove(remove bool) Option {
	return func(s *Sweeper) {
		s.remove = remove
	}
}

// WithLock 設定分散式鎖，確保同時只有一個實例在掃描
func WithLock(lock redis.IAutoRenewMutex) Option {
	return func(s *Sweeper) {
		s.lock = lock
	}
}

// WithConcurrency 設定同時讀取戰績的上限
func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		s.concurrency = n
	}
}

// WithClock 設定取得目前時間的函數
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithLogger 設定日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// Sweeper 比對 index、戰績與圖片，找出核心流程部分失敗後留下的資料
type Sweeper struct {
	scanner     kv.IScanner
	records     *wins.RecordStore
	index       *wins.IndexManager
	blobs       wins.IBlobStore
	lock        redis.IAutoRenewMutex
	grace       time.Duration
	remove      bool
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
}

func NewSweeper(service *wins.Service, scanner kv.IScanner, blobs wins.IBlobStore, opts ...Option) (*Sweeper, error) {
	const op = "NewSweeper"
	if service == nil || scanner == nil || blobs == nil {
		return nil, fmt.Errorf("[%s] service, scanner and blob store are required", op)
	}
	s := &Sweeper{
		scanner:     scanner,
		records:     service.Records(),
		index:       service.Index(),
		blobs:       blobs,
		grace:       DefaultGracePeriod,
		concurrency: 8,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.concurrency = max(s.concurrency, 1)
	s.logger = s.logger.With(slog.String("caller", "Sweeper"))
	return s, nil
}

// Sweep 執行一次掃描。持有鎖的是其他實例時回傳 Skipped 的 Report。
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	const op = "Sweeper.Sweep"
	if s.lock != nil {
		lockCtx, err := s.lock.TryLock(ctx)
		if errors.Is(err, redis.ErrLockHeld) {
			s.logger.Debug("Skip sweep, lock is held by another instance")
			return Report{Skipped: true}, nil
		}
		if err != nil {
			return Report{}, fmt.Errorf("[%s] Fail to acquire sweep lock, err=%w", op, err)
		}
		defer func() {
			if _, err := s.lock.Unlock(); err != nil {
				s.logger.Warn("Fail to release sweep lock", slog.Any("error", err))
			}
		}()
		ctx = lockCtx
	}

	indexed, err := s.index.ListIDs(ctx)
	if err != nil {
		return Report{}, err
	}
	recordKeys, err := s.scanner.Scan(ctx, wins.RecordKeyPattern)
	if err != nil {
		return Report{}, fmt.Errorf("[%s] Fail to scan records, err=%w", op, err)
	}
	stored := lo.FilterMap(recordKeys, func(key string, _ int) (string, bool) {
		return wins.RecordIDFromKey(key)
	})

	records, corrupted, err := s.load(ctx, lo.Union(indexed, stored))
	if err != nil {
		return Report{}, err
	}

	var report Report
	indexedSet := lo.SliceToMap(indexed, func(id string) (string, struct{}) { return id, struct{}{} })
	cutoff := s.now().Add(-s.grace)
	for _, id := range stored {
		if _, ok := indexedSet[id]; ok {
			continue
		}
		record, ok := records[id]
		// 讀取後才被刪除的戰績不算孤兒
		if !ok && !corrupted[id] {
			continue
		}
		if ok && record.CreatedAt.After(cutoff) {
			continue
		}
		report.OrphanRecords = append(report.OrphanRecords, id)
	}
	for _, id := range lo.Uniq(indexed) {
		if _, ok := records[id]; !ok && !corrupted[id] {
			report.DanglingIndex = append(report.DanglingIndex, id)
		}
	}

	blobKeys, err := s.scanner.Scan(ctx, wins.BlobKeyPattern)
	if err != nil {
		return Report{}, fmt.Errorf("[%s] Fail to scan images, err=%w", op, err)
	}
	referenced := lo.SliceToMap(lo.Values(records), func(record models.WinRecord) (string, struct{}) {
		return record.ImageID, struct{}{}
	})
	for _, key := range blobKeys {
		if id, ok := wins.BlobIDFromKey(key); ok {
			if _, ok := referenced[id]; !ok {
				report.UnreferencedBlobs = append(report.UnreferencedBlobs, id)
			}
		}
	}
	sort.Strings(report.OrphanRecords)
	sort.Strings(report.DanglingIndex)
	sort.Strings(report.UnreferencedBlobs)

	if s.remove && (len(report.OrphanRecords) > 0 || len(report.DanglingIndex) > 0) {
		if err := s.repair(ctx, report, records); err != nil {
			return report, err
		}
		report.Removed = true
	}

	s.logger.Info("Sweep finished",
		slog.Int("orphanRecords", len(report.OrphanRecords)),
		slog.Int("danglingIndex", len(report.DanglingIndex)),
		slog.Int("unreferencedBlobs", len(report.UnreferencedBlobs)),
		slog.Bool("removed", report.Removed))
	return report, nil
}

// load 讀取所有戰績，回傳可解析的戰績與無法解析的戰績 ID
func (s *Sweeper) load(ctx context.Context, ids []string) (map[string]models.WinRecord, map[string]bool, error) {
	var mu sync.Mutex
	records := make(map[string]models.WinRecord, len(ids))
	corrupted := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			record, err := s.records.Get(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, wins.ErrStorageFailure):
				return err
			case err != nil:
				corrupted[id] = true
			case record != nil:
				records[id] = *record
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return records, corrupted, nil
}

// repair 依照刪除的順序清除：先修正 index，再刪除孤兒戰績的圖片與戰績本身
func (s *Sweeper) repair(ctx context.Context, report Report, records map[string]models.WinRecord) error {
	for _, id := range report.DanglingIndex {
		if err := s.index.Remove(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range report.OrphanRecords {
		if record, ok := records[id]; ok && record.ImageID != "" {
			if err := s.blobs.Delete(ctx, record.ImageID); err != nil {
				s.logger.Warn("Fail to delete orphan image", slog.String("id", id), slog.Any("error", err))
			}
		}
		if err := s.records.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Start 以固定間隔在背景執行掃描，interval 小於等於 0 時不啟動
func (s *Sweeper) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval <= 0 || s.cancelFunc != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.logger.Info("Start sweeper", slog.Duration("interval", interval), slog.Bool("remove", s.remove))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("Sweep failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// Close 停止背景掃描並等待進行中的掃描結束
func (s *Sweeper) Close() {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Sweeper closed")
}
