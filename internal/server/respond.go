package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"oscar-gateway/internal/auth"
	"oscar-gateway/internal/crypto"
	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"

	"github.com/go-chi/chi/v5"
)

const maxJSONBody = 10 << 20

// methods диспетчеризует запрос по HTTP-методу. Для остальных методов
// отвечает 405 с заголовком Allow.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := m[r.Method]
	if !ok {
		w.Header().Set("Allow", m.allow())
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", r.Method), nil)
		return
	}
	h(w, r)
}

func (m methods) allow() string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// endpoint оборачивает каждый обработчик проверкой ACL. Проверка идет после
// выбора метода, поэтому неподдерживаемый метод всегда дает 405.
func (s *Server) endpoint(m methods) methods {
	out := make(methods, len(m))
	for method, h := range m {
		out[method] = s.authorize(h)
	}
	return out
}

type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, detail json.RawMessage) {
	writeJSON(w, status, errorBody{Error: message, Detail: detail})
}

// writeFailure переводит ошибку в статус и единый формат тела ответа.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	var uerr *upstream.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message, nil)
	case errors.As(err, &uerr):
		log.Printf("Upstream error for %s %s: status %d: %s", r.Method, r.URL.Path, uerr.StatusCode, uerr.Message)
		writeError(w, uerr.StatusCode, uerr.Message, uerr.Detail)
	case errors.Is(err, upstream.ErrNotConfigured):
		log.Printf("Upstream not configured for %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "upstream service is not configured", nil)
	case errors.Is(err, upstream.ErrUnreachable), errors.Is(err, upstream.ErrTimeout):
		log.Printf("Upstream unavailable for %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "upstream service unavailable", nil)
	case errors.Is(err, crypto.ErrMissingKey):
		log.Printf("Encryption key is not configured (%s %s)", r.Method, r.URL.Path)
		writeError(w, http.StatusInternalServerError, "encryption key is not configured", nil)
	default:
		log.Printf("Request %s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// --- Upstream helpers ---

// call выполняет один запрос к апстриму от имени текущего пользователя:
// заголовок Authorization передается как есть.
func (s *Server) call(r *http.Request, client service.UpstreamClient, req upstream.Request) (*upstream.Response, error) {
	if id, ok := auth.IdentityFrom(r.Context()); ok && id.Authorization != "" {
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("Authorization", id.Authorization)
	}
	if req.Timeout == 0 {
		req.Timeout = s.cfg.Upstream.Timeout
	}
	return client.Do(r.Context(), req)
}

// relay проксирует запрос и отдает ответ апстрима без изменений.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, client service.UpstreamClient, req upstream.Request) {
	resp, err := s.call(r, client, req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeUpstream(w, resp)
}

// relayDelete считает 404 апстрима успехом: удаление идемпотентно.
func (s *Server) relayDelete(w http.ResponseWriter, r *http.Request, client service.UpstreamClient, req upstream.Request) {
	_, err := s.call(r, client, req)
	if err != nil && !upstream.IsNotFound(err) {
		writeFailure(w, r, err)
		return
	}
	if err != nil {
		log.Printf("Delete %s: upstream reported 404, treating as deleted", req.Path)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeUpstream пробрасывает 200/201/204; прочие 2xx и 3xx становятся 200.
func writeUpstream(w http.ResponseWriter, resp *upstream.Response) {
	status := resp.StatusCode
	switch status {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNoContent:
		w.WriteHeader(status)
		return
	default:
		status = http.StatusOK
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	contentType := "application/json"
	if !json.Valid(body) {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			contentType = ct
		} else {
			contentType = "text/plain; charset=utf-8"
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body)
}

// --- Request helpers ---

type idKind int

const (
	uuidID idKind = iota
	opaqueID
)

// pathID читает и проверяет параметр маршрута.
func pathID(r *http.Request, param string, kind idKind) (string, error) {
	value := chi.URLParam(r, param)
	if kind == uuidID {
		return value, validate.RequireUUID(param, value)
	}
	return value, validate.RequireID(param, value)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, validate.Errorf("body", "Request body is too large")
		}
		return nil, validate.Errorf("body", "Failed to read request body")
	}
	return data, nil
}

func decodePayload(w http.ResponseWriter, r *http.Request) (models.Payload, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	return models.DecodePayload(data)
}

// decodeJSON разбирает тело запроса в v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return validate.Errorf("body", "Request body is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return validate.Errorf("body", "Invalid JSON body: %v", err)
	}
	return nil
}

// passthrough копирует из запроса только заданные непустые параметры.
func passthrough(r *http.Request, dst url.Values, keys ...string) {
	q := r.URL.Query()
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
}
