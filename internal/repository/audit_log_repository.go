package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/model"
)

// AuditLogFilter 审计日志查询条件
type AuditLogFilter struct {
	ShareholderID string
	SecurityID    string
	Result        model.AuditResult
	StartTime     int64
	EndTime       int64
}

// AuditLogRepository 审计日志仓储
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Migrate 建表
func (r *AuditLogRepository) Migrate() error {
	return r.db.AutoMigrate(&model.AuditLog{})
}

// Create 创建审计日志
func (r *AuditLogRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.CreatedAt == 0 {
		log.CreatedAt = time.Now().UnixMilli()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// List 按条件分页查询, 按时间倒序
func (r *AuditLogRepository) List(ctx context.Context, filter *AuditLogFilter, pagination *Pagination) ([]*model.AuditLog, int64, error) {
	var logs []*model.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if filter != nil {
		if filter.ShareholderID != "" {
			query = query.Where("shareholder_id = ?", filter.ShareholderID)
		}
		if filter.SecurityID != "" {
			query = query.Where("security_id = ?", filter.SecurityID)
		}
		if filter.Result != "" {
			query = query.Where("result = ?", filter.Result)
		}
		if filter.StartTime > 0 {
			query = query.Where("created_at >= ?", filter.StartTime)
		}
		if filter.EndTime > 0 {
			query = query.Where("created_at < ?", filter.EndTime)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Order("created_at DESC, id DESC").
		Find(&logs).Error

	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// CountByResult 按结果统计
func (r *AuditLogRepository) CountByResult(ctx context.Context, since int64) (map[string]int64, error) {
	type result struct {
		Result string
		Count  int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&model.AuditLog{}).
		Select("result, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("result").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, r := range results {
		counts[r.Result] = r.Count
	}
	return counts, nil
}
