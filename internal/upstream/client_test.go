package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"oscar-gateway/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DoForwardsRequest(t *testing.T) {
	var got struct {
		method, path, rawQuery, apiKey, auth, contentType string
		body                                              map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.rawQuery = r.URL.RawQuery
		got.apiKey = r.Header.Get("X-API-Key")
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	client := upstream.NewClient(upstream.Config{Name: "core", BaseURL: srv.URL + "/", APIKey: "k-123", VerifyTLS: true})
	resp, err := client.Do(context.Background(), upstream.Request{
		Method:     http.MethodPut,
		Path:       upstream.Path("rules", "cpu high/usage"),
		Query:      url.Values{"namespace": {"prod"}},
		Body:       map[string]any{"expression": "up == 0"},
		Header:     http.Header{"Authorization": {"Bearer abc"}},
		WithAPIKey: true,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"id":"1"}`, string(resp.Body))
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/rules/cpu%20high%2Fusage", got.path)
	assert.Equal(t, "namespace=prod", got.rawQuery)
	assert.Equal(t, "k-123", got.apiKey)
	assert.Equal(t, "Bearer abc", got.auth)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "up == 0", got.body["expression"])
}

func TestClient_APIKeyOnlyWhenRequested(t *testing.T) {
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-Key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := upstream.NewClient(upstream.Config{BaseURL: srv.URL, APIKey: "k-123"})
	_, err := client.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/alerts"})
	require.NoError(t, err)
	assert.Empty(t, apiKey)
}

func TestClient_RawBody(t *testing.T) {
	var contentType, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := upstream.NewClient(upstream.Config{BaseURL: srv.URL})
	_, err := client.Do(context.Background(), upstream.Request{
		Method:      http.MethodPost,
		Path:        "/rules/upload",
		RawBody:     strings.NewReader("--x\r\n"),
		ContentType: "multipart/form-data; boundary=x",
	})
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary=x", contentType)
	assert.Equal(t, "--x\r\n", body)
}

func TestClient_ErrorResponses(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectMessage string
		expectDetail  bool
	}{
		{name: "detail string", status: http.StatusNotFound, body: `{"detail":"Rule not found"}`, expectMessage: "Rule not found"},
		{name: "message wins", status: http.StatusConflict, body: `{"message":"exists","detail":"dup"}`, expectMessage: "exists"},
		{name: "validation list", status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["body","name"],"msg":"field required"}]}`, expectMessage: "Unprocessable Entity", expectDetail: true},
		{name: "plain text", status: http.StatusBadGateway, body: "bad gateway from nginx", expectMessage: "bad gateway from nginx"},
		{name: "html page", status: http.StatusInternalServerError, body: "<html>boom</html>", expectMessage: "Internal Server Error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := upstream.NewClient(upstream.Config{BaseURL: srv.URL})
			resp, err := client.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/x"})
			require.Error(t, err)
			require.NotNil(t, resp)

			var uerr *upstream.Error
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tc.status, uerr.StatusCode)
			assert.Equal(t, tc.expectMessage, uerr.Message)
			assert.Equal(t, tc.expectDetail, len(uerr.Detail) > 0)
			assert.Equal(t, tc.status, upstream.StatusOf(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := upstream.NewClient(upstream.Config{BaseURL: srv.URL})
	_, err := client.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/slow", Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrTimeout)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := upstream.NewClient(upstream.Config{BaseURL: base})
	_, err := client.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/alerts"})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrUnreachable)
}

func TestClient_NotConfigured(t *testing.T) {
	client := upstream.NewClient(upstream.Config{Name: "inventory"})
	_, err := client.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/servers"})
	assert.ErrorIs(t, err, upstream.ErrNotConfigured)
}

func TestClient_TLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	strict := upstream.NewClient(upstream.Config{BaseURL: srv.URL, VerifyTLS: true})
	_, err := strict.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, upstream.ErrUnreachable)

	lax := upstream.NewClient(upstream.Config{BaseURL: srv.URL, VerifyTLS: false})
	_, err = lax.Do(context.Background(), upstream.Request{Method: http.MethodGet, Path: "/"})
	assert.NoError(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/metricstore/probes/abc", upstream.Path("metricstore", "probes", "abc"))
	assert.Equal(t, "/rules/a%2Fb%20c", upstream.Path("rules", "a/b c"))
}
