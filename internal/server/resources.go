package server

import (
	"bytes"
	"log"
	"net/http"
	"net/url"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"

	"github.com/go-chi/chi/v5"
)

// resource описывает коллекцию middleware API: базовый путь, параметр
// маршрута с идентификатором и его вид.
type resource struct {
	client  service.UpstreamClient
	base    []string
	idParam string
	idKind  idKind
	apiKey  bool
}

func (res resource) collection() string {
	return upstream.Path(res.base...)
}

func (res resource) item(id string, sub ...string) string {
	segments := append(append(append([]string{}, res.base...), id), sub...)
	return upstream.Path(segments...)
}

// normalizer проверяет и переписывает payload перед отправкой в апстрим.
type normalizer func(p models.Payload) error

// list отдает коллекцию в конверте shape. Для ShapeList апстрим получает
// skip/limit/sort_by/order/filter и временной диапазон, для ShapeRows и
// ShapeGrid запрашивается вся коллекция. extra - параметры, которые
// пробрасываются только если заданы.
func (s *Server) list(res resource, path string, shape service.Shape, fields []string, extra ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := models.ParseListQuery(r.URL.Query())
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		query := url.Values{}
		if shape == service.ShapeList {
			query = q.Upstream()
		}
		passthrough(r, query, extra...)

		resp, err := s.call(r, res.client, upstream.Request{
			Method:     http.MethodGet,
			Path:       path,
			Query:      query,
			WithAPIKey: res.apiKey,
		})
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		var out any
		if shape == service.ShapeGrid && hasPaging(r) {
			out, err = service.ShapeGridRows(resp.Body, service.GridOptions{
				Column:  q.Column,
				Desc:    q.Desc(),
				Search:  q.Search,
				Fields:  fields,
				Page:    q.Page,
				PerPage: q.PerPage,
			})
		} else {
			out, err = service.Reshape(shape, resp.Body, q, fields)
		}
		if err != nil {
			log.Printf("Unexpected list response from %s: %v", path, err)
			writeError(w, http.StatusInternalServerError, "Unexpected upstream response", nil)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func hasPaging(r *http.Request) bool {
	q := r.URL.Query()
	return q.Get("perPage") != "" || q.Get("limit") != "" || q.Get("per_page") != ""
}

func (s *Server) listCollection(res resource, shape service.Shape, fields []string, extra ...string) http.HandlerFunc {
	return s.list(res, res.collection(), shape, fields, extra...)
}

func (s *Server) get(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodGet, Path: res.item(id), WithAPIKey: res.apiKey})
	}
}

func (s *Server) create(res resource, normalize normalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodePayload(w, r)
		if err == nil && normalize != nil {
			err = normalize(p)
		}
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: http.MethodPost, Path: res.collection(), Body: p, WithAPIKey: res.apiKey})
	}
}

func (s *Server) update(res resource, method string, normalize normalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		p, err := decodePayload(w, r)
		if err == nil && normalize != nil {
			err = normalize(p)
		}
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relay(w, r, res.client, upstream.Request{Method: method, Path: res.item(id), Body: p, WithAPIKey: res.apiKey})
	}
}

func (s *Server) remove(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, res.idParam, res.idKind)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		s.relayDelete(w, r, res.client, upstream.Request{Method: http.MethodDelete, Path: res.item(id), WithAPIKey: res.apiKey})
	}
}

// bulk принимает массив UUID и отправляет {"ids": [...]} на base/bulk/{action}.
func (s *Server) bulk(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, err := models.ParseBulkAction(chi.URLParam(r, "action"))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		data, err := readBody(w, r)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		ids, err := models.ParseIDList(data)
		if err == nil {
			err = validate.UUIDs("ids", ids)
		}
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		path := upstream.Path(append(append([]string{}, res.base...), "bulk", string(action))...)
		s.relay(w, r, res.client, upstream.Request{
			Method:     http.MethodPost,
			Path:       path,
			Body:       models.BulkIDs{IDs: models.Dedupe(ids)},
			WithAPIKey: res.apiKey,
		})
	}
}

// optionalBody возвращает тело запроса или nil, если оно пустое.
func optionalBody(w http.ResponseWriter, r *http.Request) (models.Payload, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return models.DecodePayload(data)
}
