package server

import (
	"net/http"
	"net/url"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"

	"github.com/go-chi/chi/v5"
)

// Правила адресуются по имени, а не по id; имя кодируется при подстановке
// в путь апстрима.
func (s *Server) mountRules(r chi.Router) {
	rules := resource{client: s.core, base: []string{"rules"}}

	r.Handle("/rules", s.endpoint(methods{
		http.MethodGet: s.listCollection(rules, service.ShapeList, nil, "namespace"),
		http.MethodPost: s.create(rules, func(p models.Payload) error {
			return models.NormalizeRule(p, true)
		}),
	}))
	r.Handle("/rules/upload", s.endpoint(methods{
		http.MethodPost: s.upload(s.core, "/rules/upload"),
	}))
	r.Handle("/rules/{name}", s.endpoint(methods{
		http.MethodPut:    s.handleUpdateRule,
		http.MethodDelete: s.handleDeleteRule,
	}))
}

// ruleName декодирует имя ровно один раз: chi маршрутизирует по RawPath,
// только если он задан, иначе параметр уже декодирован.
func ruleName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return "", validate.Errorf("name", "Invalid name: %v", err)
		}
	}
	if name == "" {
		return "", validate.Errorf("name", "Missing required parameter: name")
	}
	return name, nil
}

// namespaceQuery пробрасывает namespace, только если он задан: отсутствие
// параметра не означает пространство по умолчанию.
func namespaceQuery(r *http.Request) url.Values {
	q := url.Values{}
	passthrough(r, q, "namespace")
	return q
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	name, err := ruleName(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	p, err := decodePayload(w, r)
	if err == nil {
		err = models.NormalizeRule(p, false)
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relay(w, r, s.core, upstream.Request{
		Method: http.MethodPut,
		Path:   upstream.Path("rules", name),
		Query:  namespaceQuery(r),
		Body:   p,
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name, err := ruleName(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relayDelete(w, r, s.core, upstream.Request{
		Method: http.MethodDelete,
		Path:   upstream.Path("rules", name),
		Query:  namespaceQuery(r),
	})
}
