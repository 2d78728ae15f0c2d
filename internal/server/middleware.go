package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"oscar-gateway/internal/auth"
	"oscar-gateway/internal/metrics"
	"oscar-gateway/internal/models"

	"github.com/go-chi/chi/v5"
)

// --- Middlewares ---

// authenticate принимает либо собственный заголовок Authorization вызывающего
// (он уходит в апстрим как есть), либо зашифрованную сессионную cookie.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get("Authorization"); header != "" {
			id := &auth.Identity{Role: s.cfg.Auth.BearerRole, Authorization: header}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
			return
		}

		if s.sessions == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		sess, err := s.sessions.Read(r)
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				log.Printf("AUTH fail %s %s: %v", r.Method, r.URL.Path, err)
				s.sessions.Clear(w)
			}
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		id := &auth.Identity{
			Username:      sess.Username,
			Email:         sess.Email,
			Role:          sess.Role,
			Authorization: "Bearer " + sess.AccessToken,
			FromSession:   true,
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// authorize проверяет роль вызывающего по ACL.
func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.acl == nil {
			next(w, r)
			return
		}
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		if !s.acl.Allowed(id.Role, r.URL.Path, r.Method) {
			log.Printf("PERM fail %s %s user=%s role=%s", r.Method, r.URL.Path, id.Username, id.Role)
			writeError(w, http.StatusForbidden, "Forbidden", nil)
			return
		}
		next(w, r)
	}
}

// auditMiddleware записывает в журнал изменяющие запросы после их выполнения.
// Шаблон маршрута и параметры доступны только после обработки.
func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.audit.Enabled() || !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		record := &models.AuditRecord{
			Method:     r.Method,
			Route:      routePattern(r),
			ResourceID: resourceID(r),
			Query:      models.QueryMap(r.URL.Query()),
			Status:     rec.status,
		}
		if id, ok := auth.IdentityFrom(r.Context()); ok {
			record.Username = id.Username
			record.Role = id.Role
		}
		s.audit.Record(r.Context(), record)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveRequest(routePattern(r), r.Method, strconv.Itoa(rec.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func resourceID(r *http.Request) string {
	for _, key := range []string{"id", "name", "connID", "action"} {
		if v := chi.URLParam(r, key); v != "" {
			return v
		}
	}
	return ""
}
