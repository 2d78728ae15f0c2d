package gorm

import (
	"context"
	"time"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"gorm.io/gorm"
)

// GormAuditRepository - это реализация AuditRepository с использованием GORM.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository создает новый экземпляр репозитория журнала.
func NewGormAuditRepository(db *gorm.DB) (service.AuditRepository, error) {
	return &GormAuditRepository{db: db}, nil
}

func (r *GormAuditRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// List возвращает страницу журнала с пагинацией, новые записи первыми.
func (r *GormAuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditRecord{})
	if filter.Username != "" {
		query = query.Where("username = ?", filter.Username)
	}
	if filter.Route != "" {
		query = query.Where("route = ?", filter.Route)
	}
	if filter.Since != nil {
		query = query.Where("timestamp >= ?", *filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*models.AuditRecord
	err := query.
		Order("timestamp desc").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&records).Error
	return records, total, err
}

// DeleteBefore удаляет записи журнала безвозвратно, минуя soft delete.
func (r *GormAuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().Where("timestamp < ?", cutoff).Delete(&models.AuditRecord{})
	return result.RowsAffected, result.Error
}
