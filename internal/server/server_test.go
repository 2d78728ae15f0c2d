package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"oscar-gateway/internal/auth"
	"oscar-gateway/internal/config"
	"oscar-gateway/internal/crypto"
	"oscar-gateway/internal/service"
	"oscar-gateway/internal/storage/inmemory"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/upstream/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Setup ---

const (
	testUUID   = "3f2b8c1e-6a4d-4e7b-9c2f-1a2b3c4d5e6f"
	testBearer = "Bearer caller-token"
)

type serverTestKit struct {
	cfg       *config.Config
	core      *mock.ClientMock
	inventory *mock.ClientMock
	mapping   *mock.ClientMock
	auditRepo *inmemory.MockAuditRepository
	sessions  *auth.SessionCodec
	router    http.Handler
}

func setupServerTest(t *testing.T) *serverTestKit {
	t.Helper()

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			Timeout:     time.Second,
			LongTimeout: 100 * time.Millisecond,
		},
		Auth: config.AuthConfig{
			PostLoginURL:   "/",
			SessionTTL:     time.Hour,
			InsecureCookie: true,
			BearerRole:     auth.RoleOperator,
		},
		Workflows: config.WorkflowsConfig{
			Engine:  "airflow",
			Airflow: config.EndpointConfig{Scheme: "https", Host: "airflow.local", Port: "8080"},
		},
		Grafana: config.EndpointConfig{Scheme: "https", Host: "grafana.local", Path: "/d/overview"},
		Uploads: config.UploadsConfig{TempDir: t.TempDir(), MaxBytes: 1 << 20},
	}

	enc, err := crypto.FromSecret("test-secret")
	require.NoError(t, err)
	acl, err := auth.NewACL()
	require.NoError(t, err)
	searcher, err := service.NewSearcher()
	require.NoError(t, err)

	kit := &serverTestKit{
		cfg:       cfg,
		core:      mock.NewClientMock(),
		inventory: mock.NewClientMock(),
		mapping:   mock.NewClientMock(),
		auditRepo: inmemory.NewMockAuditRepository(),
		sessions:  auth.NewSessionCodec(enc, time.Hour, false),
	}
	kit.router = New(cfg, Dependencies{
		Middleware: kit.core,
		Inventory:  kit.inventory,
		Mapping:    kit.mapping,
		Sessions:   kit.sessions,
		ACL:        acl,
		Audit:      service.NewAuditService(kit.auditRepo),
		Searcher:   searcher,
	}).Router()
	return kit
}

// do выполняет запрос с заголовком Authorization (роль operator).
func (k *serverTestKit) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", testBearer)
	rr := httptest.NewRecorder()
	k.router.ServeHTTP(rr, req)
	return rr
}

// doAs выполняет запрос с сессионной cookie пользователя с ролью role.
func (k *serverTestKit) doAs(t *testing.T, role, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(k.sessionCookie(t, role))
	rr := httptest.NewRecorder()
	k.router.ServeHTTP(rr, req)
	return rr
}

func (k *serverTestKit) sessionCookie(t *testing.T, role string) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, k.sessions.Write(rr, auth.Session{
		Username:    "jdoe",
		Email:       "jdoe@example.com",
		Role:        role,
		AccessToken: "session-token",
		IDToken:     "id-token",
	}))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func jsonBody(v string) io.Reader {
	return strings.NewReader(v)
}

// --- Routing ---

func TestHealthz(t *testing.T) {
	kit := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	testCases := []struct {
		method      string
		target      string
		expectAllow string
	}{
		{http.MethodDelete, "/api/alerts", "GET"},
		{http.MethodPatch, "/api/suppressions/" + testUUID, "DELETE, GET, PUT"},
		{http.MethodGet, "/api/tasks/" + testUUID + "/run", "POST"},
		{http.MethodPost, "/api/rules/cpu", "DELETE, PUT"},
		{http.MethodPut, "/api/secrets", "DELETE, GET, POST"},
		{http.MethodGet, "/api/mappings/bulk", "DELETE, PUT"},
		{http.MethodDelete, "/api/workflows/" + testUUID, "GET, PATCH"},
		{http.MethodGet, "/api/auth/logout", "POST"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			kit := setupServerTest(t)

			rr := kit.do(tc.method, tc.target, nil)

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Equal(t, tc.expectAllow, rr.Header().Get("Allow"))
			assert.Equal(t, 0, kit.core.CallCount())
		})
	}
}

func TestInvalidUUIDRejectedBeforeUpstream(t *testing.T) {
	testCases := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/api/alerts/not-a-uuid", ""},
		{http.MethodDelete, "/api/suppressions/123", ""},
		{http.MethodPut, "/api/sli/abc", `{"name":"x"}`},
		{http.MethodPost, "/api/tasks/xyz/run", `{}`},
		{http.MethodGet, "/api/tasks/xyz/history", ""},
		{http.MethodDelete, "/api/probes/00000000-0000-0000-0000-000000000000", ""},
		{http.MethodPost, "/api/notifiers/bulk/enable", `["not-a-uuid"]`},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			kit := setupServerTest(t)

			rr := kit.do(tc.method, tc.target, jsonBody(tc.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
			assert.Equal(t, 0, kit.core.CallCount(), "upstream must not be called")
		})
	}
}

// --- Upstream errors ---

func TestDeleteNotFoundIsNoContent(t *testing.T) {
	kit := setupServerTest(t)
	// Без заготовки мок отвечает 404.

	rr := kit.do(http.MethodDelete, "/api/suppressions/"+testUUID, nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	require.Equal(t, 1, kit.core.CallCount())
	assert.Equal(t, "/suppressions/"+testUUID, kit.core.LastCall().Request.Path)
}

func TestDeleteUpstreamFailurePropagates(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodDelete, "/notifiers/"+testUUID, http.StatusConflict, `{"detail":"Notifier is in use"}`)

	rr := kit.do(http.MethodDelete, "/api/notifiers/"+testUUID, nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Notifier is in use", decodeBody(t, rr)["error"])
}

func TestGetNotFoundIsNotMasked(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/alerts/"+testUUID, http.StatusNotFound, `{"detail":"Alert not found"}`)

	rr := kit.do(http.MethodGet, "/api/alerts/"+testUUID, nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Alert not found", decodeBody(t, rr)["error"])
}

func TestUpstreamValidationDetailIsForwarded(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodPost, "/notifiers", http.StatusUnprocessableEntity,
		`{"detail":[{"loc":["body","emails"],"msg":"field required"}]}`)

	rr := kit.do(http.MethodPost, "/api/notifiers", jsonBody(`{"name":"ops","type":"email","email_addresses":["ops@example.com"]}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Unprocessable Entity", body["error"])
	assert.NotNil(t, body["detail"])
}

func TestUpstreamUnavailable(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.FailNextCall = true

	rr := kit.do(http.MethodGet, "/api/alerts", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "upstream service unavailable", decodeBody(t, rr)["error"])
}

func TestUpstreamNotConfigured(t *testing.T) {
	kit := setupServerTest(t)
	kit.inventory.OnError(http.MethodGet, "/servers", fmt.Errorf("%w: inventory", upstream.ErrNotConfigured))

	rr := kit.do(http.MethodGet, "/api/inventory/servers", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "upstream service is not configured", decodeBody(t, rr)["error"])
}

// --- Lists ---

func TestListAlertsEnvelope(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/alerts", http.StatusOK, `{"items":[{"id":"a1","status":"firing"}],"total":25}`)

	rr := kit.do(http.MethodGet, "/api/alerts?page=2&perPage=10&sort=desc&column=start_time&filter=%7B%22status%22%3A%22firing%22%7D", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"total_pages":3,"total_records":25,"records":[{"id":"a1","status":"firing"}]}`, rr.Body.String())

	query := kit.core.LastCall().Request.Query
	assert.Equal(t, "10", query.Get("skip"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "start_time", query.Get("sort_by"))
	assert.Equal(t, "desc", query.Get("order"))
	assert.Equal(t, `{"status":"firing"}`, query.Get("filter"))
}

func TestListRejectsInvalidFilter(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodGet, "/api/alerts?filter=%7Bnot-json", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, kit.core.CallCount())
}

func TestMappingNamespaceFilter(t *testing.T) {
	kit := setupServerTest(t)
	kit.mapping.On(http.MethodGet, "/namespaces", http.StatusOK, `[{"id":1,"name":"Foo"},{"id":2,"name":"Bar"}]`)

	rr := kit.do(http.MethodGet, "/api/mappings/namespaces?q=foo", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body service.GridEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "Foo", body.Rows[0]["name"])
	assert.Len(t, body.AllData, 2)
	assert.Equal(t, 0, kit.core.CallCount())
}

func TestUsersRowsEnvelope(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/users", http.StatusOK,
		`[{"username":"jdoe","email":"jdoe@example.com"},{"username":"asmith","email":"asmith@example.com"}]`)

	rr := kit.do(http.MethodGet, "/api/users?q=SMITH", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["rows"], 1)
	assert.Empty(t, kit.core.LastCall().Request.Query)
}

// --- Validation ---

func TestCreateSuppressionWindow(t *testing.T) {
	testCases := []struct {
		name          string
		body          string
		expectStatus  int
		expectMessage string
	}{
		{
			name:          "end before start in same hour",
			body:          `{"name":"lunch","start_hour":10,"start_minute":30,"end_hour":10,"end_minute":15}`,
			expectStatus:  http.StatusBadRequest,
			expectMessage: "End time must be after start time when hours are equal",
		},
		{
			name:          "hour out of range",
			body:          `{"name":"night","start_hour":25,"start_minute":0,"end_hour":6,"end_minute":0}`,
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Hours must be between 0 and 23",
		},
		{
			name:          "minute out of range",
			body:          `{"name":"night","start_hour":1,"start_minute":60,"end_hour":6,"end_minute":0}`,
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Minutes must be between 0 and 59",
		},
		{
			name:         "valid window",
			body:         `{"name":"night","start_hour":"22","start_minute":0,"end_hour":6,"end_minute":0}`,
			expectStatus: http.StatusCreated,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kit := setupServerTest(t)
			kit.core.On(http.MethodPost, "/suppressions", http.StatusCreated, `{"id":"`+testUUID+`"}`)

			rr := kit.do(http.MethodPost, "/api/suppressions", jsonBody(tc.body))

			assert.Equal(t, tc.expectStatus, rr.Code, rr.Body.String())
			if tc.expectMessage != "" {
				assert.Equal(t, tc.expectMessage, decodeBody(t, rr)["error"])
				assert.Equal(t, 0, kit.core.CallCount())
				return
			}
			var sent map[string]any
			require.NoError(t, json.Unmarshal(kit.core.LastCall().Body, &sent))
			assert.EqualValues(t, 22, sent["start_hour"])
		})
	}
}

func TestCreateSLICoercesTarget(t *testing.T) {
	t.Run("not a number", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.do(http.MethodPost, "/api/sli", jsonBody(`{"name":"api","target":{"target_value":"abc","period":"60"}}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, kit.core.CallCount())
	})

	t.Run("numeric strings", func(t *testing.T) {
		kit := setupServerTest(t)
		kit.core.On(http.MethodPost, "/sli", http.StatusCreated, `{"id":"`+testUUID+`"}`)

		rr := kit.do(http.MethodPost, "/api/sli", jsonBody(`{"name":"api","target":{"target_value":"99.9","period":"3600"}}`))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		sent := kit.core.LastCall().Body
		assert.Contains(t, string(sent), `"period":3600`)
		assert.Contains(t, string(sent), `"target_value":99.9`)
	})
}

func TestBulkNotifiers(t *testing.T) {
	t.Run("rejects non-array body", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.do(http.MethodPost, "/api/notifiers/bulk/enable", jsonBody(`{"ids":["`+testUUID+`"]}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Request body must be a non-empty array of ids", decodeBody(t, rr)["error"])
		assert.Equal(t, 0, kit.core.CallCount())
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.do(http.MethodPost, "/api/notifiers/bulk/archive", jsonBody(`["`+testUUID+`"]`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, kit.core.CallCount())
	})

	t.Run("forwards ids", func(t *testing.T) {
		kit := setupServerTest(t)
		kit.core.On(http.MethodPost, "/notifiers/bulk/disable", http.StatusOK, `{"updated":1}`)

		rr := kit.do(http.MethodPost, "/api/notifiers/bulk/disable", jsonBody(`["`+testUUID+`","`+testUUID+`"]`))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"ids":["`+testUUID+`"]}`, string(kit.core.LastCall().Body))
	})
}

// --- Rules ---

func TestRuleNameIsEncoded(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodPut, "/rules/disk%2Froot%20full", http.StatusOK, `{"name":"disk/root full"}`)

	rr := kit.do(http.MethodPut, "/api/rules/disk%2Froot%20full?namespace=prod", jsonBody(`{"expression":"node_filesystem_avail_bytes < 1e9"}`))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	call := kit.core.LastCall().Request
	assert.Equal(t, "/rules/disk%2Froot%20full", call.Path)
	assert.Equal(t, "prod", call.Query.Get("namespace"))
}

func TestRuleNameDecodedOnce(t *testing.T) {
	testCases := []struct {
		name         string
		requestPath  string
		upstreamPath string
	}{
		{name: "percent sign", requestPath: "/api/rules/cpu%25high", upstreamPath: "/rules/cpu%25high"},
		{name: "escaped percent sequence", requestPath: "/api/rules/a%2525b", upstreamPath: "/rules/a%2525b"},
		{name: "slash", requestPath: "/api/rules/disk%2Froot", upstreamPath: "/rules/disk%2Froot"},
		{name: "slash and percent", requestPath: "/api/rules/a%2Fb%25c", upstreamPath: "/rules/a%2Fb%25c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kit := setupServerTest(t)
			kit.core.On(http.MethodDelete, tc.upstreamPath, http.StatusNoContent, nil)

			rr := kit.do(http.MethodDelete, tc.requestPath, nil)

			require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
			require.Equal(t, 1, kit.core.CallCount())
			assert.Equal(t, tc.upstreamPath, kit.core.LastCall().Request.Path)
		})
	}
}

func TestDeleteRuleNamespaceOnlyWhenPresent(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodDelete, "/rules/cpu", http.StatusNoContent, nil)

	rr := kit.do(http.MethodDelete, "/api/rules/cpu", nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, ok := kit.core.LastCall().Request.Query["namespace"]
	assert.False(t, ok, "namespace must not be sent when absent")
}

// --- Tasks ---

func TestTaskHistoryEnvelope(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/tasks/"+testUUID+"/history", http.StatusOK, `{"records":[{"run":1},{"run":2}],"total_records":2}`)

	rr := kit.do(http.MethodGet, "/api/tasks/"+testUUID+"/history", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"total_pages":1,"total_records":2,"records":[{"run":1},{"run":2}]}`, rr.Body.String())
}

func TestTaskHistoryTimeout(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.Handler = func(ctx context.Context, req upstream.Request) (*upstream.Response, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", upstream.ErrTimeout, ctx.Err())
	}

	rr := kit.do(http.MethodGet, "/api/tasks/history", nil)

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	var body service.ListEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 0, body.TotalPages)
	assert.Equal(t, 0, body.TotalRecords)
	assert.NotNil(t, body.Records)
	assert.Empty(t, body.Records)
	assert.Contains(t, body.Error, "timed out")
}

func TestTaskHistoryClientDeadline(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.OnError(http.MethodGet, "/tasks/history", fmt.Errorf("%w: context deadline exceeded", upstream.ErrTimeout))

	rr := kit.do(http.MethodGet, "/api/tasks/history", nil)

	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.JSONEq(t, `{"total_pages":0,"total_records":0,"records":[],"error":"Task history request timed out"}`, rr.Body.String())
}

func TestTaskHistoryUpstreamError(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/tasks/history", http.StatusBadGateway, `{"detail":"Airflow is down"}`)

	rr := kit.do(http.MethodGet, "/api/tasks/history", nil)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"total_pages":0,"total_records":0,"records":[],"error":"Airflow is down"}`, rr.Body.String())
}

func TestRunTaskSendsAPIKey(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodPost, "/tasks/"+testUUID+"/run", http.StatusAccepted, `{"run_id":"r1"}`)

	rr := kit.do(http.MethodPost, "/api/tasks/"+testUUID+"/run", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	call := kit.core.LastCall()
	assert.True(t, call.Request.WithAPIKey)
	assert.Equal(t, testBearer, call.Request.Header.Get("Authorization"))
}

// --- Uploads ---

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (k *serverTestKit) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(k.cfg.Uploads.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp upload files must be removed")
}

func TestUploadRulesForwardsFile(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodPost, "/rules/upload", http.StatusOK, `{"imported":2}`)

	body, contentType := multipartBody(t, nil, "rules.yaml", "groups:\n  - name: node\n")
	req := httptest.NewRequest(http.MethodPost, "/api/rules/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testBearer)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"imported":2}`, rr.Body.String())

	call := kit.core.LastCall()
	assert.True(t, strings.HasPrefix(call.Request.ContentType, "multipart/form-data; boundary="))
	assert.Contains(t, string(call.Body), `filename="rules.yaml"`)
	assert.Contains(t, string(call.Body), "groups:\n  - name: node\n")
	kit.assertTempDirEmpty(t)
}

func TestUploadWithoutFile(t *testing.T) {
	kit := setupServerTest(t)

	body, contentType := multipartBody(t, map[string]string{"comment": "no file"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/inventory/servers/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testBearer)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No file uploaded", decodeBody(t, rr)["error"])
	assert.Equal(t, 0, kit.inventory.CallCount())
	kit.assertTempDirEmpty(t)
}

func TestUploadNotMultipart(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodPost, "/api/rules/upload", jsonBody(`{"file":"x"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, kit.core.CallCount())
}

func TestUploadMappingsRequiresNamespace(t *testing.T) {
	t.Run("missing namespace_id", func(t *testing.T) {
		kit := setupServerTest(t)

		body, contentType := multipartBody(t, nil, "mappings.csv", "key,value\n")
		req := httptest.NewRequest(http.MethodPost, "/api/mappings/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", testBearer)
		rr := httptest.NewRecorder()
		kit.router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, kit.mapping.CallCount())
		kit.assertTempDirEmpty(t)
	})

	t.Run("forwards form fields", func(t *testing.T) {
		kit := setupServerTest(t)
		kit.mapping.On(http.MethodPost, "/mappings/upload", http.StatusCreated, `{"created":1}`)

		body, contentType := multipartBody(t, map[string]string{"namespace_id": "ns-1"}, "mappings.csv", "key,value\nhost,db01\n")
		req := httptest.NewRequest(http.MethodPost, "/api/mappings/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", testBearer)
		rr := httptest.NewRecorder()
		kit.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		sent := string(kit.mapping.LastCall().Body)
		assert.Contains(t, sent, `name="namespace_id"`)
		assert.Contains(t, sent, "ns-1")
		assert.Contains(t, sent, "host,db01")
		kit.assertTempDirEmpty(t)
	})
}

func TestUploadUpstreamFailureCleansUp(t *testing.T) {
	kit := setupServerTest(t)
	kit.inventory.FailNextCall = true

	body, contentType := multipartBody(t, nil, "servers.xlsx", "binary")
	req := httptest.NewRequest(http.MethodPost, "/api/inventory/servers/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testBearer)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	kit.assertTempDirEmpty(t)
}

// --- Mappings, secrets, workflows ---

func TestBulkDeleteMappings(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodDelete, "/api/mappings/bulk", jsonBody(`["m1","m2"]`))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.JSONEq(t, `{"ids":["m1","m2"]}`, string(kit.mapping.LastCall().Body))
}

func TestBulkUpdateMappingsRequiresIDs(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodPut, "/api/mappings/bulk", jsonBody(`[{"key":"host"}]`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, kit.mapping.CallCount())
}

func TestSecrets(t *testing.T) {
	t.Run("path is required", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.do(http.MethodGet, "/api/secrets", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, kit.core.CallCount())
	})

	t.Run("read uses api key", func(t *testing.T) {
		kit := setupServerTest(t)
		kit.core.On(http.MethodGet, "/vault/secrets", http.StatusOK, `{"data":{"user":"svc"}}`)

		rr := kit.do(http.MethodGet, "/api/secrets?path=db/prod", nil)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		call := kit.core.LastCall().Request
		assert.True(t, call.WithAPIKey)
		assert.Equal(t, "db/prod", call.Query.Get("path"))
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.do(http.MethodPost, "/api/secrets", jsonBody(`{"path":"db/../root","secret":{"k":"v"}}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, kit.core.CallCount())
	})

	t.Run("delete as admin", func(t *testing.T) {
		kit := setupServerTest(t)

		rr := kit.doAs(t, auth.RoleAdmin, http.MethodDelete, "/api/secrets", jsonBody(`{"paths":["db/prod"],"delete_empty_paths":true}`))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.JSONEq(t, `{"paths":["db/prod"],"delete_empty_paths":true}`, string(kit.core.LastCall().Body))
	})
}

func TestUpdateConnectionNameMismatch(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodPut, "/api/workflows/connections/pg_main", jsonBody(`{"name":"pg_other","type":"postgres","host":"db"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, kit.core.CallCount())
}

// --- Search ---

func TestSearch(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodGet, "/api/search?q=al", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []service.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "Alerts", results[0].Title)

	rr = kit.do(http.MethodGet, "/api/search?q=zzzz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

// --- Auth, ACL and embeds ---

func TestAuthenticationRequired(t *testing.T) {
	kit := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Authentication required", decodeBody(t, rr)["error"])
	assert.Equal(t, 0, kit.core.CallCount())
}

func TestSessionTokenForwarded(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodGet, "/alerts/active", http.StatusOK, `[]`)

	rr := kit.doAs(t, auth.RoleViewer, http.MethodGet, "/api/alerts/active", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Bearer session-token", kit.core.LastCall().Request.Header.Get("Authorization"))
}

func TestACL(t *testing.T) {
	testCases := []struct {
		name         string
		role         string
		method       string
		target       string
		body         string
		expectStatus int
	}{
		{"viewer cannot create", auth.RoleViewer, http.MethodPost, "/api/rules", `{"name":"cpu","expression":"up"}`, http.StatusForbidden},
		{"viewer cannot read audit", auth.RoleViewer, http.MethodGet, "/api/audit", "", http.StatusForbidden},
		{"operator cannot delete secrets", auth.RoleOperator, http.MethodDelete, "/api/secrets", `{"paths":["a"]}`, http.StatusForbidden},
		{"operator cannot read audit", auth.RoleOperator, http.MethodGet, "/api/audit", "", http.StatusForbidden},
		{"admin reads audit", auth.RoleAdmin, http.MethodGet, "/api/audit", "", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kit := setupServerTest(t)

			rr := kit.doAs(t, tc.role, tc.method, tc.target, jsonBody(tc.body))

			assert.Equal(t, tc.expectStatus, rr.Code, rr.Body.String())
			assert.Equal(t, 0, kit.core.CallCount())
		})
	}
}

func TestEmbedDashboards(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.doAs(t, auth.RoleOperator, http.MethodGet, "/api/embed/dashboards", nil)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://grafana.local/d/overview", rr.Header().Get("Location"))
	assert.Equal(t, "jdoe", rr.Header().Get("X-WEBAUTH-USER"))
	assert.Equal(t, auth.RoleOperator, rr.Header().Get("X-WEBAUTH-ROLE"))
	assert.Equal(t, "jdoe@example.com", rr.Header().Get("X-WEBAUTH-EMAIL"))
	assert.Empty(t, rr.Body.String())
}

func TestEmbedWorkflowsEngine(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.doAs(t, auth.RoleViewer, http.MethodGet, "/api/embed/workflows", nil)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://airflow.local:8080", rr.Header().Get("Location"))
}

func TestEmbedRequiresSession(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.do(http.MethodGet, "/api/embed/dashboards", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionEndpoint(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.doAs(t, auth.RoleAdmin, http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "jdoe", body["username"])
	assert.Equal(t, auth.RoleAdmin, body["role"])
	assert.NotContains(t, rr.Body.String(), "session-token")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	rr = httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	kit := setupServerTest(t)

	rr := kit.doAs(t, auth.RoleViewer, http.MethodPost, "/api/auth/logout", nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestLoginWithoutProvider(t *testing.T) {
	kit := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rr := httptest.NewRecorder()
	kit.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// --- Audit ---

func TestMutatingRequestIsAudited(t *testing.T) {
	kit := setupServerTest(t)
	kit.core.On(http.MethodDelete, "/metricstore/probes/"+testUUID, http.StatusNoContent, nil)

	rr := kit.doAs(t, auth.RoleOperator, http.MethodDelete, "/api/probes/"+testUUID+"?reason=cleanup", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// GET не попадает в журнал.
	kit.doAs(t, auth.RoleOperator, http.MethodGet, "/api/search?q=al", nil)

	records := kit.auditRepo.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "jdoe", rec.Username)
	assert.Equal(t, auth.RoleOperator, rec.Role)
	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/api/probes/{id}", rec.Route)
	assert.Equal(t, testUUID, rec.ResourceID)
	assert.Equal(t, "cleanup", rec.Query["reason"])
	assert.Equal(t, http.StatusNoContent, rec.Status)
	assert.True(t, rec.Success)

	rr = kit.doAs(t, auth.RoleAdmin, http.MethodGet, "/api/audit?username=jdoe", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.EqualValues(t, 1, body["total_records"])
	assert.EqualValues(t, 1, body["total_pages"])
}

func TestAuditDisabled(t *testing.T) {
	kit := setupServerTest(t)
	enc, err := crypto.FromSecret("test-secret")
	require.NoError(t, err)
	acl, err := auth.NewACL()
	require.NoError(t, err)
	router := New(kit.cfg, Dependencies{
		Middleware: kit.core,
		Sessions:   auth.NewSessionCodec(enc, time.Hour, false),
		ACL:        acl,
	}).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	req.AddCookie(kit.sessionCookie(t, auth.RoleAdmin))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
