package server

import (
	"log"
	"net/http"

	"oscar-gateway/internal/auth"

	"github.com/go-chi/chi/v5"
)

// Заголовки, по которым Grafana и движки workflow узнают пользователя
// (auth proxy).
const (
	headerWebAuthUser  = "X-WEBAUTH-USER"
	headerWebAuthRole  = "X-WEBAUTH-ROLE"
	headerWebAuthEmail = "X-WEBAUTH-EMAIL"
)

func (s *Server) mountEmbeds(r chi.Router) {
	r.Handle("/embed/dashboards", s.endpoint(methods{
		http.MethodGet: s.embed("dashboards", s.cfg.Grafana.URL),
	}))
	r.Handle("/embed/workflows", s.endpoint(methods{
		http.MethodGet: s.embed("workflows", s.cfg.WorkflowEngineURL),
	}))
}

// embed перенаправляет браузер во внешний UI, передавая личность из сессии.
// Тело ответа не пишется.
func (s *Server) embed(name string, target func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok || !id.FromSession {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		location := target()
		if location == "" {
			log.Printf("Embed %s: external URL is not configured", name)
			writeError(w, http.StatusInternalServerError, "embedded UI is not configured", nil)
			return
		}
		w.Header().Set(headerWebAuthUser, id.Username)
		w.Header().Set(headerWebAuthRole, id.Role)
		w.Header().Set(headerWebAuthEmail, id.Email)
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	}
}
