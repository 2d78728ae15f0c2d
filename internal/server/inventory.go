package server

import (
	"net/http"

	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountInventory(r chi.Router) {
	servers := resource{client: s.inventory, base: []string{"servers"}}

	r.Handle("/inventory/servers", s.endpoint(methods{
		http.MethodGet: s.listCollection(servers, service.ShapeList, nil),
	}))
	r.Handle("/inventory/servers/upload", s.endpoint(methods{
		http.MethodPost: s.upload(s.inventory, "/servers/upload"),
	}))
}
