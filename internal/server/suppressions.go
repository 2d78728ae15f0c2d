package server

import (
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountSuppressions(r chi.Router) {
	windows := resource{client: s.core, base: []string{"suppressions"}, idParam: "id", idKind: uuidID}

	r.Handle("/suppressions", s.endpoint(methods{
		http.MethodGet:  s.listCollection(windows, service.ShapeList, nil),
		http.MethodPost: s.create(windows, normalizeSuppressionWindow),
	}))
	r.Handle("/suppressions/{id}", s.endpoint(methods{
		http.MethodGet:    s.get(windows),
		http.MethodPut:    s.update(windows, http.MethodPut, normalizeSuppressionWindow),
		http.MethodDelete: s.remove(windows),
	}))
}

// Окна подавления проверяются локально: апстрим принимает некорректное
// время молча.
func normalizeSuppressionWindow(p models.Payload) error {
	w, err := models.ParseSuppressionWindow(p)
	if err != nil {
		return err
	}
	w.Apply(p)
	return nil
}
