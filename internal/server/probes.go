package server

import (
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountProbes(r chi.Router) {
	probes := resource{client: s.core, base: []string{"metricstore", "probes"}, idParam: "id", idKind: uuidID}

	r.Handle("/probes", s.endpoint(methods{
		http.MethodGet: s.listCollection(probes, service.ShapeList, nil),
		http.MethodPost: s.create(probes, func(p models.Payload) error {
			return models.NormalizeProbe(p, false)
		}),
	}))
	r.Handle("/probes/bulk/{action}", s.endpoint(methods{
		http.MethodPost: s.bulk(probes),
	}))
	r.Handle("/probes/{id}", s.endpoint(methods{
		http.MethodGet: s.get(probes),
		http.MethodPut: s.update(probes, http.MethodPut, func(p models.Payload) error {
			return models.NormalizeProbe(p, true)
		}),
		http.MethodDelete: s.remove(probes),
	}))
}
