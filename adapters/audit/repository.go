package audit

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"winsboard/models"
)

// Repository 將管理員刪除紀錄寫入資料庫
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

type RepositoryOption func(*Repository)

// WithRepositoryLogger 設定日誌記錄器
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = logger
	}
}

func NewRepository(db *gorm.DB, opts ...RepositoryOption) (*Repository, error) {
	const op = "NewRepository"
	if db == nil {
		return nil, fmt.Errorf("[%s] db cannot be nil", op)
	}
	r := &Repository{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("caller", "AuditRepository"))
	return r, nil
}

// Migrate 建立或更新 deletion_audits 資料表
func (r *Repository) Migrate(ctx context.Context) error {
	const op = "Repository.Migrate"
	if err := r.db.WithContext(ctx).AutoMigrate(&models.DeletionAudit{}); err != nil {
		return fmt.Errorf("[%s] Fail to migrate deletion audits, err=%w", op, err)
	}
	return nil
}

// Record 新增一筆刪除紀錄
func (r *Repository) Record(ctx context.Context, audit models.DeletionAudit) error {
	const op = "Repository.Record"
	if result := r.db.WithContext(ctx).Create(&audit); result.Error != nil {
		return fmt.Errorf("[%s] Fail to create deletion audit, win=%s, err=%w", op, audit.WinID, result.Error)
	}
	r.logger.Debug("Deletion audited",
		slog.String("id", audit.WinID),
		slog.String("outcome", string(audit.Outcome)))
	return nil
}

// List 依時間由新到舊列出紀錄，winID 為空時列出全部
func (r *Repository) List(ctx context.Context, winID string, limit int) ([]models.DeletionAudit, error) {
	const op = "Repository.List"
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if winID != "" {
		query = query.Where(&models.DeletionAudit{WinID: winID})
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var audits []models.DeletionAudit
	if result := query.Find(&audits); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list deletion audits, err=%w", op, result.Error)
	}
	return audits, nil
}
