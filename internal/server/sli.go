package server

import (
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountSLI(r chi.Router) {
	slis := resource{client: s.core, base: []string{"sli"}, idParam: "id", idKind: uuidID}

	r.Handle("/sli", s.endpoint(methods{
		http.MethodGet: s.listCollection(slis, service.ShapeList, nil),
		http.MethodPost: s.create(slis, func(p models.Payload) error {
			return models.CoerceSLITarget(p, false)
		}),
	}))
	r.Handle("/sli/{id}", s.endpoint(methods{
		http.MethodGet: s.get(slis),
		http.MethodPut: s.update(slis, http.MethodPut, func(p models.Payload) error {
			return models.CoerceSLITarget(p, true)
		}),
		http.MethodDelete: s.remove(slis),
	}))
}
