package service

import (
	"context"
	"time"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/upstream"
)

// UpstreamClient определяет интерфейс исходящего вызова к middleware API.
// Реализуется upstream.Client и моком из upstream/mock.
type UpstreamClient interface {
	Do(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// AuditRepository определяет интерфейс хранения журнала изменяющих запросов.
type AuditRepository interface {
	Create(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
