package server

import (
	"net/http"

	"oscar-gateway/internal/service"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountSearch(r chi.Router) {
	r.Handle("/search", s.endpoint(methods{
		http.MethodGet: s.handleSearch,
	}))
}

// handleSearch никогда не отвечает ошибкой: отсутствие совпадений - пустой массив.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results := []service.SearchResult{}
	if s.searcher != nil {
		results = s.searcher.Search(r.URL.Query().Get("q"))
	}
	writeJSON(w, http.StatusOK, results)
}
