package server

import (
	"errors"
	"net/http"
	"time"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountAudit(r chi.Router) {
	r.Handle("/audit", s.endpoint(methods{
		http.MethodGet: s.handleListAudit,
	}))
}

type auditView struct {
	ID         uint            `json:"id"`
	Username   string          `json:"username"`
	Role       string          `json:"role"`
	Method     string          `json:"method"`
	Route      string          `json:"route"`
	ResourceID string          `json:"resource_id,omitempty"`
	Query      models.JSONBMap `json:"query,omitempty"`
	Status     int             `json:"status"`
	Success    bool            `json:"success"`
	Timestamp  time.Time       `json:"timestamp"`
}

type auditPage struct {
	TotalPages   int         `json:"total_pages"`
	TotalRecords int64       `json:"total_records"`
	Records      []auditView `json:"records"`
}

// handleListAudit отдает журнал постранично. Фильтры: username, route и
// start_time (записи не раньше).
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q, err := models.ParseListQuery(r.URL.Query())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	filter := models.AuditFilter{
		Username: r.URL.Query().Get("username"),
		Route:    r.URL.Query().Get("route"),
		Since:    q.StartTime,
		Limit:    q.PerPage,
		Offset:   q.Skip(),
	}

	records, total, err := s.audit.List(r.Context(), filter)
	if errors.Is(err, service.ErrAuditDisabled) {
		writeError(w, http.StatusNotFound, "Audit journal is disabled", nil)
		return
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	page := auditPage{
		TotalPages:   q.TotalPages(int(total)),
		TotalRecords: total,
		Records:      make([]auditView, 0, len(records)),
	}
	for _, rec := range records {
		page.Records = append(page.Records, auditView{
			ID:         rec.ID,
			Username:   rec.Username,
			Role:       rec.Role,
			Method:     rec.Method,
			Route:      rec.Route,
			ResourceID: rec.ResourceID,
			Query:      rec.Query,
			Status:     rec.Status,
			Success:    rec.Success,
			Timestamp:  rec.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, page)
}
