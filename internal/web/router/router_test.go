package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/activerow/internal/metrics"
	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/executor/executortest"
	"github.com/conduit-lang/activerow/internal/orm/refcache"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/validation"
	"github.com/conduit-lang/activerow/internal/web/auth"
)

type testServer struct {
	handler http.Handler
	store   *executortest.Recorder
	tokens  *auth.TokenService
}

func newTestServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()

	user := schema.NewModel("user", "id", "name", "email", "account_id")
	user.Table = "users"
	user.Hooks.Validate("email", validation.Hook(&validation.EmailValidator{}))
	user.HasOne("account", schema.Link{}).HasMany("post", schema.Link{Key: "posts"})
	user.Rules = &access.Rules{Delete: []string{"admin"}, Hidden: []string{"email"}, ViewHidden: []string{"admin"}}

	account := schema.NewModel("account", "id", "name")
	account.Table = "accounts"

	post := schema.NewModel("post", "id", "user_id", "title")
	post.Table = "posts"

	reg := schema.NewRegistry()
	reg.MustRegister(user, account, post)
	require.NoError(t, reg.ValidateAll())

	store := executortest.New()
	promReg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(promReg)
	require.NoError(t, err)

	mgr := entity.NewManager(reg,
		entity.WithExecutor(store),
		entity.WithReferences(refcache.New()),
		entity.WithObserver(collector))

	tokens, err := auth.NewTokenService("test-secret", "activerow", time.Hour)
	require.NoError(t, err)

	return &testServer{
		handler: New(Config{
			Manager:      mgr,
			Tokens:       tokens,
			AuthRequired: authRequired,
			APIPrefix:    "/api",
			Metrics:      promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
			MetricsPath:  "/metrics",
		}),
		store:  store,
		tokens: tokens,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, roles ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if roles != nil {
		token, err := s.tokens.Issue("tester", roles)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, true)
	rec, body := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_CreateShowUpdateDelete(t *testing.T) {
	s := newTestServer(t, false)

	rec, body := s.do(t, http.MethodPost, "/api/user", `{"name":"Ann","email":"ann@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "Ann", data["name"])
	assert.NotContains(t, data, "email", "hidden from callers without the admin role")

	rec, body = s.do(t, http.MethodGet, "/api/user/1", "", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.com", body["data"].(map[string]interface{})["email"])

	rec, body = s.do(t, http.MethodPatch, "/api/user/1", `{"name":"Annie"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Annie", body["data"].(map[string]interface{})["name"])

	rows, err := s.store.Select(context.Background(), "users", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Annie", rows[0]["name"])

	rec, _ = s.do(t, http.MethodDelete, "/api/user/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/user/1", "", "admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/user/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestRouter_ValidationAndSchemaErrors(t *testing.T) {
	s := newTestServer(t, false)

	rec, body := s.do(t, http.MethodPost, "/api/user", `{"name":"Ann","email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["fields"], "email")
	assert.Equal(t, 0, s.store.Len("users"))

	rec, _ = s.do(t, http.MethodPost, "/api/user", `{"nickname":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/user", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/widget", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.store.Seed("users", map[string]interface{}{"id": int64(4), "name": "Bo"})
	rec, _ = s.do(t, http.MethodPatch, "/api/user/4", `{"id":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_FailedUpdateWritesNothing(t *testing.T) {
	s := newTestServer(t, false)
	s.store.Seed("users", map[string]interface{}{"id": int64(1), "name": "Ann", "email": "ann@example.com"})

	rec, body := s.do(t, http.MethodPatch, "/api/user/1", `{"name":"Hacked","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "bogus")

	rec, _ = s.do(t, http.MethodPatch, "/api/user/1", `{"name":"Hacked","email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Empty(t, s.store.CallsTo(executortest.OpUpdate))
	rows, err := s.store.Select(context.Background(), "users", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0]["name"])
}

func TestRouter_FailedFlushIsNotRetried(t *testing.T) {
	s := newTestServer(t, false)

	s.store.Fail(executortest.OpInsert, executor.ErrUniqueViolation)
	rec, _ := s.do(t, http.MethodPost, "/api/user", `{"name":"Ann"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, s.store.CallsTo(executortest.OpInsert), 1)
	assert.Equal(t, 0, s.store.Len("users"))

	s.store.Fail(executortest.OpInsert, nil)
	s.store.Seed("users", map[string]interface{}{"id": int64(7), "name": "Bo"})
	s.store.Fail(executortest.OpUpdate, errors.New("connection reset"))
	rec, _ = s.do(t, http.MethodPatch, "/api/user/7", `{"name":"Bob"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, s.store.CallsTo(executortest.OpUpdate), 1)
}

func TestRouter_ListAndLinks(t *testing.T) {
	s := newTestServer(t, false)
	s.store.Seed("accounts", map[string]interface{}{"id": int64(1), "name": "Acme"})
	s.store.Seed("users",
		map[string]interface{}{"id": int64(1), "name": "Ann", "account_id": int64(1)},
		map[string]interface{}{"id": int64(2), "name": "Bo"},
	)
	s.store.Seed("posts",
		map[string]interface{}{"id": int64(1), "user_id": int64(1), "title": "a"},
		map[string]interface{}{"id": int64(2), "user_id": int64(1), "title": "b"},
	)

	rec, body := s.do(t, http.MethodGet, "/api/user?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	rec, body = s.do(t, http.MethodGet, "/api/user?name=Bo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/user?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/user/1/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", body["data"].(map[string]interface{})["name"])

	rec, body = s.do(t, http.MethodGet, "/api/user/1/posts?title=b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/user/2/account", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/user/1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Schema(t *testing.T) {
	s := newTestServer(t, false)

	rec, body := s.do(t, http.MethodGet, "/api/_schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 3)

	rec, body = s.do(t, http.MethodGet, "/api/_schema/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := body["data"].(map[string]interface{})
	assert.Equal(t, "users", info["table"])
	assert.Equal(t, "id", info["key"])
	assert.Len(t, info["links"], 2)

	rec, _ = s.do(t, http.MethodGet, "/api/_schema/widget", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	s := newTestServer(t, true)

	rec, _ := s.do(t, http.MethodGet, "/api/user", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/user", "", "viewer")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, false)
	s.do(t, http.MethodPost, "/api/user", `{"name":"Ann"}`)

	rec, _ := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `activerow_flushes_total{model="user",outcome="insert"} 1`)
}
