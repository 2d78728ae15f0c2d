package server

import (
	"net/http"

	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

var userSearchFields = []string{"first_name", "last_name", "email", "username"}

// Пользователи забираются целиком и фильтруются по q на стороне шлюза.
func (s *Server) mountUsers(r chi.Router) {
	users := resource{client: s.core, base: []string{"users"}, idParam: "id", idKind: uuidID, apiKey: true}

	r.Handle("/users", s.endpoint(methods{
		http.MethodGet: s.listCollection(users, service.ShapeRows, userSearchFields),
	}))
	r.Handle("/users/{id}", s.endpoint(methods{
		http.MethodGet: s.get(users),
	}))
}
