package models

import (
	"time"

	"gorm.io/gorm"
)

// AuditRecord хранит запись об изменяющем запросе, прошедшем через шлюз.
// Route - шаблон маршрута chi ("/api/rules/{name}"), Query - параметры
// запроса; тело запроса в журнал не попадает.
type AuditRecord struct {
	gorm.Model
	Username   string    `gorm:"index"`
	Role       string
	Method     string    `gorm:"not null"`
	Route      string    `gorm:"not null"`
	ResourceID string    `gorm:"index"`
	Query      JSONBMap
	Status     int       `gorm:"not null"`
	Success    bool
	Timestamp  time.Time `gorm:"not null;index"`
}

// AuditFilter ограничивает выборку журнала.
type AuditFilter struct {
	Username string
	Route    string
	Since    *time.Time
	Limit    int
	Offset   int
}
