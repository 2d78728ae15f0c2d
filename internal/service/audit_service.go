package service

import (
	"context"
	"errors"
	"log"
	"time"

	"oscar-gateway/internal/models"
)

var ErrAuditDisabled = errors.New("audit journal is disabled")

// AuditService ведет журнал изменяющих запросов. С nil-репозиторием
// запись ничего не делает, а чтение возвращает ErrAuditDisabled.
type AuditService struct {
	repo AuditRepository
	now  func() time.Time
}

// NewAuditService создает новый экземпляр AuditService.
func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Enabled сообщает, подключено ли хранилище журнала.
func (s *AuditService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Record сохраняет запись. Ошибка хранилища только логируется: журнал
// не влияет на ответ клиенту.
func (s *AuditService) Record(ctx context.Context, record *models.AuditRecord) {
	if !s.Enabled() {
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = s.now().UTC()
	}
	record.Success = record.Status < 400
	if err := s.repo.Create(ctx, record); err != nil {
		log.Printf("Failed to write audit record for %s %s: %v", record.Method, record.Route, err)
	}
}

// List возвращает страницу журнала, новые записи первыми.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int64, error) {
	if !s.Enabled() {
		return nil, 0, ErrAuditDisabled
	}
	if filter.Limit <= 0 || filter.Limit > models.MaxPerPage {
		filter.Limit = models.DefaultPerPage
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Prune удаляет записи старше maxAge. Вызывается фоновой задачей по
// расписанию.
func (s *AuditService) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if !s.Enabled() {
		return 0, ErrAuditDisabled
	}
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-maxAge)
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("Pruned %d audit records older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
