package server

import (
	"net/http"

	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountAlerts(r chi.Router) {
	alerts := resource{client: s.core, base: []string{"alerts"}, idParam: "id", idKind: uuidID}

	r.Handle("/alerts", s.endpoint(methods{
		http.MethodGet: s.listCollection(alerts, service.ShapeList, nil),
	}))
	r.Handle("/alerts/active", s.endpoint(methods{
		http.MethodGet: s.list(alerts, alerts.item("active"), service.ShapeList, nil),
	}))
	r.Handle("/alerts/{id}", s.endpoint(methods{
		http.MethodGet: s.get(alerts),
	}))
}
