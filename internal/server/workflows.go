package server

import (
	"encoding/json"
	"net/http"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountWorkflows(r chi.Router) {
	workflows := resource{client: s.core, base: []string{"workflows"}, idParam: "id", idKind: opaqueID, apiKey: true}
	connections := resource{client: s.core, base: []string{"workflows", "connections"}, idParam: "connID", idKind: opaqueID, apiKey: true}

	r.Handle("/workflows", s.endpoint(methods{
		http.MethodGet: s.listCollection(workflows, service.ShapeList, nil, "tags", "owners"),
	}))
	r.Handle("/workflows/connections", s.endpoint(methods{
		http.MethodGet:  s.listCollection(connections, service.ShapeList, nil),
		http.MethodPost: s.handleCreateConnection(connections),
	}))
	r.Handle("/workflows/connections/{connID}", s.endpoint(methods{
		http.MethodGet:    s.get(connections),
		http.MethodPut:    s.handleUpdateConnection(connections),
		http.MethodDelete: s.remove(connections),
	}))
	r.Handle("/workflows/{id}", s.endpoint(methods{
		http.MethodGet:   s.get(workflows),
		http.MethodPatch: s.handlePatchWorkflow(workflows),
	}))
	r.Handle("/workflows/{id}/run", s.endpoint(methods{
		http.MethodPost: s.handleRunWorkflow(workflows),
	}))
	r.Handle("/workflows/{id}/runs", s.endpoint(methods{
		http.MethodGet: s.handleListRuns(workflows),
	}))
}

func (s *Server) handlePatchWorkflow(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		var patch models.WorkflowPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeFailure(w, r, err)
			return
		}
		if err := patch.Validate(); err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPatch, Path: res.item(id), Body: patch, WithAPIKey: res.apiKey})
	}
}

// handleRunWorkflow запускает DAG; тело (conf) необязательно.
func (s *Server) handleRunWorkflow(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		p, err := optionalBody(w, r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		var body any = p
		if p == nil {
			body = json.RawMessage(`{}`)
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPost, Path: res.item(id, "run"), Body: body, WithAPIKey: res.apiKey})
	}
}

func (s *Server) handleListRuns(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.list(res, res.item(id, "runs"), service.ShapeList, nil, "state")(w, r)
	}
}

func (s *Server) handleCreateConnection(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ConnectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeFailure(w, r, err)
			return
		}
		conn, err := req.ToUpstream("")
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPost, Path: res.collection(), Body: conn, WithAPIKey: res.apiKey})
	}
}

// handleUpdateConnection переименовывает поля консоли (name, type) в поля
// апстрима (connection_id, conn_type); идентификатор берется из пути.
func (s *Server) handleUpdateConnection(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		var req models.ConnectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeFailure(w, r, err)
			return
		}
		if req.Name != "" && req.Name != id {
			writeFailure(w, r, validate.Errorf("name", "name %q does not match connection %q", req.Name, id))
			return
		}
		conn, err := req.ToUpstream(id)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPut, Path: res.item(id), Body: conn, WithAPIKey: res.apiKey})
	}
}
