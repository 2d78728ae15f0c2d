package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"oscar-gateway/internal/upstream"
)

// Call - зафиксированный вызов к апстриму. Body содержит JSON-тело
// или полностью вычитанный RawBody (multipart).
type Call struct {
	Request upstream.Request
	Body    []byte
}

type reply struct {
	status int
	body   []byte
	err    error
}

// ClientMock имитирует upstream.Client: отвечает заготовленными ответами
// и запоминает все вызовы, чтобы тесты могли проверить их количество.
type ClientMock struct {
	mu      sync.Mutex
	calls   []Call
	replies map[string]reply

	// Handler, если задан, обрабатывает все вызовы вместо заготовок.
	Handler func(ctx context.Context, req upstream.Request) (*upstream.Response, error)
	// FailNextCall используется для тестирования недоступности апстрима.
	FailNextCall bool
}

// NewClientMock создает новый экземпляр мока.
func NewClientMock() *ClientMock {
	return &ClientMock{replies: make(map[string]reply)}
}

// On регистрирует ответ для METHOD + path. body может быть строкой,
// []byte или любым значением, сериализуемым в JSON.
func (m *ClientMock) On(method, path string, status int, body any) *ClientMock {
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		if err != nil {
			panic(fmt.Sprintf("mock: cannot encode reply body: %v", err))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[method+" "+path] = reply{status: status, body: data}
	return m
}

// OnError регистрирует транспортную ошибку для METHOD + path.
func (m *ClientMock) OnError(method, path string, err error) *ClientMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[method+" "+path] = reply{err: err}
	return m
}

// Do имитирует upstream.Client.Do.
func (m *ClientMock) Do(ctx context.Context, req upstream.Request) (*upstream.Response, error) {
	call := Call{Request: req}
	switch {
	case req.RawBody != nil:
		// Вычитываем поток полностью, иначе пишущая горутина зависнет.
		data, err := io.ReadAll(req.RawBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", upstream.ErrUnreachable, err)
		}
		call.Body = data
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		call.Body = data
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	handler := m.Handler
	if m.FailNextCall {
		m.FailNextCall = false // Сбрасываем флаг после использования
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: mock upstream failed", upstream.ErrUnreachable)
	}
	r, ok := m.replies[req.Method+" "+req.Path]
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if !ok {
		r = reply{status: http.StatusNotFound, body: []byte(`{"detail":"Not Found"}`)}
	}
	if r.err != nil {
		return nil, r.err
	}
	resp := &upstream.Response{StatusCode: r.status, Header: http.Header{}, Body: r.body}
	if r.status >= http.StatusBadRequest {
		return resp, upstream.NewError(r.status, r.body)
	}
	return resp, nil
}

// CallCount возвращает количество вызовов.
func (m *ClientMock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls возвращает копию всех вызовов.
func (m *ClientMock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// LastCall возвращает последний вызов; паникует, если вызовов не было.
func (m *ClientMock) LastCall() Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		panic("mock: no upstream calls recorded")
	}
	return m.calls[len(m.calls)-1]
}
