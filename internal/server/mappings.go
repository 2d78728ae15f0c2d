package server

import (
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"

	"github.com/go-chi/chi/v5"
)

// Маппинги живут в отдельном сервисе. Списки отдаются таблице целиком:
// {allData, total, rows}.
func (s *Server) mountMappings(r chi.Router) {
	namespaces := resource{client: s.mapping, base: []string{"namespaces"}, idParam: "id", idKind: opaqueID}
	mappings := resource{client: s.mapping, base: []string{"mappings"}, idParam: "id", idKind: opaqueID}

	r.Handle("/mappings/namespaces", s.endpoint(methods{
		http.MethodGet:  s.listCollection(namespaces, service.ShapeGrid, models.NamespaceSearchFields),
		http.MethodPost: s.create(namespaces, requireName),
	}))
	r.Handle("/mappings/namespaces/{id}", s.endpoint(methods{
		http.MethodDelete: s.remove(namespaces),
	}))
	r.Handle("/mappings/namespaces/{id}/mappings", s.endpoint(methods{
		http.MethodGet:  s.handleListNamespaceMappings(namespaces),
		http.MethodPost: s.handleCreateMapping(namespaces),
	}))
	r.Handle("/mappings/bulk", s.endpoint(methods{
		http.MethodPut:    s.handleBulkUpdateMappings,
		http.MethodDelete: s.handleBulkDeleteMappings,
	}))
	r.Handle("/mappings/upload", s.endpoint(methods{
		http.MethodPost: s.upload(s.mapping, "/mappings/upload", "namespace_id"),
	}))
	r.Handle("/mappings/{id}", s.endpoint(methods{
		http.MethodPut:    s.update(mappings, http.MethodPut, nil),
		http.MethodDelete: s.remove(mappings),
	}))
}

func requireName(p models.Payload) error {
	if name, ok := p.String("name"); !ok || name == "" {
		return validate.Errorf("name", "Missing required field: name")
	}
	return nil
}

func (s *Server) handleListNamespaceMappings(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.list(res, res.item(id, "mappings"), service.ShapeGrid, models.MappingSearchFields)(w, r)
	}
}

func (s *Server) handleCreateMapping(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		p, err := decodePayload(w, r)
		if err == nil && !p.Has("key") {
			err = validate.Errorf("key", "Missing required field: key")
		}
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPost, Path: res.item(id, "mappings"), Body: p})
	}
}

func (s *Server) handleBulkUpdateMappings(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	items, err := models.ParseMappingBulkUpdate(data)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relay(w, r, s.mapping, upstream.Request{Method: http.MethodPut, Path: "/mappings/bulk", Body: items})
}

func (s *Server) handleBulkDeleteMappings(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	ids, err := models.ParseIDList(data)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relayDelete(w, r, s.mapping, upstream.Request{
		Method: http.MethodDelete,
		Path:   "/mappings/bulk",
		Body:   models.BulkIDs{IDs: models.Dedupe(ids)},
	})
}
