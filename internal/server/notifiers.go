package server

import (
	"encoding/json"
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountNotifiers(r chi.Router) {
	notifiers := resource{client: s.core, base: []string{"notifiers"}, idParam: "id", idKind: uuidID}

	r.Handle("/notifiers", s.endpoint(methods{
		http.MethodGet:  s.listCollection(notifiers, service.ShapeList, nil),
		http.MethodPost: s.create(notifiers, normalizeNotifier),
	}))
	r.Handle("/notifiers/bulk/{action}", s.endpoint(methods{
		http.MethodPost: s.bulk(notifiers),
	}))
	r.Handle("/notifiers/{id}", s.endpoint(methods{
		http.MethodGet:    s.get(notifiers),
		http.MethodPut:    s.update(notifiers, http.MethodPut, normalizeNotifier),
		http.MethodDelete: s.remove(notifiers),
	}))
}

// normalizeNotifier проверяет payload как email- или webhook-уведомитель
// и фиксирует тег type в нижнем регистре.
func normalizeNotifier(p models.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	n, err := models.DecodeNotifier(data)
	if err != nil {
		return err
	}
	return p.Set("type", n.Kind())
}
