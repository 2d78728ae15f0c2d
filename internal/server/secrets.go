package server

import (
	"net/http"
	"net/url"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/upstream"

	"github.com/go-chi/chi/v5"
)

const secretsPath = "/vault/secrets"

// Секреты проксируются в Vault через middleware API с X-API-Key.
// Значения секретов никогда не пишутся в лог.
func (s *Server) mountSecrets(r chi.Router) {
	r.Handle("/secrets", s.endpoint(methods{
		http.MethodGet:    s.handleGetSecrets,
		http.MethodPost:   s.handleWriteSecret,
		http.MethodDelete: s.handleDeleteSecrets,
	}))
}

func (s *Server) handleGetSecrets(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if err := models.ValidateSecretPath("path", path); err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relay(w, r, s.core, upstream.Request{
		Method:     http.MethodGet,
		Path:       secretsPath,
		Query:      url.Values{"path": {path}},
		WithAPIKey: true,
	})
}

func (s *Server) handleWriteSecret(w http.ResponseWriter, r *http.Request) {
	var req models.SecretWrite
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relay(w, r, s.core, upstream.Request{Method: http.MethodPost, Path: secretsPath, Body: req, WithAPIKey: true})
}

func (s *Server) handleDeleteSecrets(w http.ResponseWriter, r *http.Request) {
	var req models.SecretDelete
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeFailure(w, r, err)
		return
	}
	req.Paths = models.Dedupe(req.Paths)
	s.relayDelete(w, r, s.core, upstream.Request{Method: http.MethodDelete, Path: secretsPath, Body: req, WithAPIKey: true})
}
