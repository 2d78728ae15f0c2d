package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"gorm.io/gorm"
)

// MockAuditRepository - это in-memory реализация AuditRepository для тестов.
type MockAuditRepository struct {
	mu      sync.RWMutex
	records []*models.AuditRecord
	nextID  uint
	// FailNextCall используется для тестирования ошибок хранилища.
	FailNextCall bool
}

// NewMockAuditRepository создает новый экземпляр мок-репозитория.
func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{nextID: 1}
}

var _ service.AuditRepository = (*MockAuditRepository)(nil)

func (m *MockAuditRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextCall {
		m.FailNextCall = false // Сбрасываем флаг после использования
		return gorm.ErrInvalidDB
	}
	record.Model = gorm.Model{ID: m.nextID, CreatedAt: record.Timestamp}
	m.nextID++
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.AuditRecord
	for _, r := range m.records {
		if filter.Username != "" && r.Username != filter.Username {
			continue
		}
		if filter.Route != "" && r.Route != filter.Route {
			continue
		}
		if filter.Since != nil && r.Timestamp.Before(*filter.Since) {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (m *MockAuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextCall {
		m.FailNextCall = false
		return 0, gorm.ErrInvalidDB
	}
	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Records возвращает все сохраненные записи в порядке добавления.
func (m *MockAuditRepository) Records() []*models.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.AuditRecord(nil), m.records...)
}
