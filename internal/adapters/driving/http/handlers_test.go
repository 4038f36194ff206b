package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

const testToken = "good-token"

type mockAuthService struct {
	issueFn func(ctx context.Context, key string) (*domain.TokenResponse, error)
}

func (m *mockAuthService) IssueToken(ctx context.Context, key string) (*domain.TokenResponse, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, key)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	switch token {
	case testToken:
		return &domain.AuthContext{Subject: "api"}, nil
	case "expired":
		return nil, domain.ErrTokenExpired
	default:
		return nil, domain.ErrTokenInvalid
	}
}

func (m *mockAuthService) TokenTTL() time.Duration { return time.Hour }

type mockSyncService struct {
	stateFn       func(ctx context.Context, collection string) (*domain.StateSummary, error)
	collectionsFn func(ctx context.Context) ([]string, error)
}

func (m *mockSyncService) Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) State(ctx context.Context, collection string) (*domain.StateSummary, error) {
	if m.stateFn != nil {
		return m.stateFn(ctx, collection)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) Collections(ctx context.Context) ([]string, error) {
	if m.collectionsFn != nil {
		return m.collectionsFn(ctx)
	}
	return nil, errors.New("not implemented")
}

type mockTaskService struct {
	submitFn func(ctx context.Context, req domain.SyncRequest) (*domain.Task, error)
	getFn    func(ctx context.Context, id string) (*domain.Task, error)
}

func (m *mockTaskService) Submit(ctx context.Context, req domain.SyncRequest) (*domain.Task, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, errors.New("not implemented")
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	auth  *mockAuthService
	sync  *mockSyncService
	tasks *mockTaskService
	srv   *Server
}

func newTestServer(checks map[string]Pinger) *testServer {
	ts := &testServer{auth: &mockAuthService{}, sync: &mockSyncService{}, tasks: &mockTaskService{}}
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.srv = NewServer(cfg, ts.auth, ts.sync, ts.tasks, checks, logger)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.3", decode[map[string]string](t, rec)["version"])
}

func TestReady(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := newTestServer(map[string]Pinger{"state": ok, "queue": ok}).do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newTestServer(map[string]Pinger{"state": ok, "queue": down}).do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestIssueToken(t *testing.T) {
	ts := newTestServer(nil)
	ts.auth.issueFn = func(ctx context.Context, key string) (*domain.TokenResponse, error) {
		switch key {
		case "":
			return nil, domain.ErrInvalidInput
		case "right":
			return &domain.TokenResponse{Token: "jwt"}, nil
		default:
			return nil, domain.ErrUnauthorized
		}
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/token", "", domain.TokenRequest{Key: "right"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jwt", decode[domain.TokenResponse](t, rec).Token)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/token", "", domain.TokenRequest{Key: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/token", "", domain.TokenRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(nil)
	ts.sync.collectionsFn = func(ctx context.Context) ([]string, error) { return []string{}, nil }

	tests := []struct {
		name   string
		header string
		want   int
		msg    string
	}{
		{"missing", "", http.StatusUnauthorized, "missing authorization token"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "missing authorization token"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "token expired"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"valid", "bearer " + testToken, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode[ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestListCollections(t *testing.T) {
	ts := newTestServer(nil)
	ts.sync.collectionsFn = func(ctx context.Context) ([]string, error) {
		return []string{"a.com", "b.com"}, nil
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/collections", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a.com", "b.com"}, decode[CollectionsResponse](t, rec).Collections)
}

func TestGetState(t *testing.T) {
	ts := newTestServer(nil)
	var asked string
	ts.sync.stateFn = func(ctx context.Context, collection string) (*domain.StateSummary, error) {
		asked = collection
		return &domain.StateSummary{Collection: collection, Discovered: 12}, nil
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/collections/www.Example.com/state", testToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example.com", asked)
	assert.Equal(t, 12, decode[domain.StateSummary](t, rec).Discovered)

	rec = ts.do(t, http.MethodGet, "/api/v1/collections/localhost/state", testToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(nil)
	var got domain.SyncRequest
	ts.tasks.submitFn = func(ctx context.Context, req domain.SyncRequest) (*domain.Task, error) {
		got = req
		return domain.NewTask(req), nil
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/collections/example.com/sync", testToken,
		SyncRequestBody{Mode: domain.SyncModeFullRefresh, Limit: 10, MaxPages: 3})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, domain.SyncRequest{Collection: "example.com", Mode: domain.SyncModeFullRefresh, Limit: 10, MaxPages: 3}, got)
	task := decode[domain.Task](t, rec)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)

	rec = ts.do(t, http.MethodPost, "/api/v1/collections/example.com/sync", testToken, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code, "body is optional")
	assert.Empty(t, got.Mode)
}

func TestTriggerSync_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{domain.ErrSyncInProgress, http.StatusConflict},
		{domain.ErrLockLost, http.StatusConflict},
		{errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts := newTestServer(nil)
			ts.tasks.submitFn = func(ctx context.Context, req domain.SyncRequest) (*domain.Task, error) {
				return nil, tt.err
			}

			rec := ts.do(t, http.MethodPost, "/api/v1/collections/example.com/sync", testToken, nil)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetTask(t *testing.T) {
	ts := newTestServer(nil)
	ts.tasks.getFn = func(ctx context.Context, id string) (*domain.Task, error) {
		if id == "t1" {
			task := domain.NewTask(domain.SyncRequest{Collection: "example.com"})
			task.ID = "t1"
			task.MarkCompleted(&domain.SyncResult{Collection: "example.com"})
			return task, nil
		}
		return nil, domain.ErrNotFound
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/tasks/t1", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	task := decode[domain.Task](t, rec)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)

	rec = ts.do(t, http.MethodGet, "/api/v1/tasks/t2", testToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRecoveryMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAuthContext(t *testing.T) {
	assert.Nil(t, GetAuthContext(context.Background()))

	ctx := context.WithValue(context.Background(), authContextKey, &domain.AuthContext{Subject: "api"})
	assert.Equal(t, "api", GetAuthContext(ctx).Subject)
}

func TestServer_StartStop(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 0}
	srv := NewServer(cfg, &mockAuthService{}, &mockSyncService{}, &mockTaskService{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
