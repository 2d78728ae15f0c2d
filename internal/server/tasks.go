package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"oscar-gateway/internal/models"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountTasks(r chi.Router) {
	tasks := resource{client: s.core, base: []string{"tasks"}, idParam: "id", idKind: uuidID}

	r.Handle("/tasks", s.endpoint(methods{
		http.MethodGet: s.listCollection(tasks, service.ShapeList, nil),
	}))
	r.Handle("/tasks/history", s.endpoint(methods{
		http.MethodGet: s.handleTaskHistory,
	}))
	r.Handle("/tasks/{id}", s.endpoint(methods{
		http.MethodGet: s.get(tasks),
	}))
	r.Handle("/tasks/{id}/history", s.endpoint(methods{
		http.MethodGet: s.handleTaskHistory,
	}))
	r.Handle("/tasks/{id}/run", s.endpoint(methods{
		http.MethodPost: s.handleRunTask,
	}))
}

type historyResult struct {
	resp *upstream.Response
	err  error
}

// handleTaskHistory гонит запрос истории против явного таймаута. Проигравшая
// ветка отменяется, ее результат уходит в буферизованный канал и
// отбрасывается; клиент получает ровно один ответ.
func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	path := "/tasks/history"
	if chi.URLParam(r, "id") != "" {
		id, err := pathID(r, "id", uuidID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		path = upstream.Path("tasks", id, "history")
	}
	q, err := models.ParseListQuery(r.URL.Query())
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	timeout := s.cfg.Upstream.LongTimeout
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan historyResult, 1)
	req := r.WithContext(ctx)
	go func() {
		resp, err := s.call(req, s.core, upstream.Request{
			Method:  http.MethodGet,
			Path:    path,
			Query:   q.Upstream(),
			Timeout: timeout,
		})
		done <- historyResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			writeHistoryFailure(w, r, res.err)
			return
		}
		env, err := service.BuildListEnvelope(res.resp.Body, q)
		if err != nil {
			log.Printf("Unexpected task history response from %s: %v", path, err)
			writeJSON(w, http.StatusInternalServerError, service.EmptyListEnvelope("Unexpected upstream response"))
			return
		}
		writeJSON(w, http.StatusOK, env)
	case <-timer.C:
		cancel()
		log.Printf("Task history %s timed out after %s", path, timeout)
		writeJSON(w, http.StatusGatewayTimeout, service.EmptyListEnvelope(fmt.Sprintf("Task history request timed out after %s", timeout)))
	}
}

// writeHistoryFailure отвечает тем же конвертом с нулевыми счетчиками,
// чтобы таблица показала пустое состояние.
func writeHistoryFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "upstream service unavailable"
	var uerr *upstream.Error
	switch {
	case errors.As(err, &uerr):
		status = uerr.StatusCode
		message = uerr.Message
	case errors.Is(err, upstream.ErrTimeout):
		status = http.StatusGatewayTimeout
		message = "Task history request timed out"
	}
	log.Printf("Task history %s failed: %v", r.URL.Path, err)
	writeJSON(w, status, service.EmptyListEnvelope(message))
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", uuidID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	run, err := models.ParseTaskRun(data)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	s.relay(w, r, s.core, upstream.Request{
		Method:     http.MethodPost,
		Path:       upstream.Path("tasks", id, "run"),
		Body:       run,
		WithAPIKey: true,
	})
}
