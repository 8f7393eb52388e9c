package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/signproxy/internal/adapter/driven/memory"
	httphandler "github.com/ericfisherdev/signproxy/internal/adapter/driving/http"
	"github.com/ericfisherdev/signproxy/internal/application"
	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/signature"
)

const (
	accessKey = "gateway-secret"
	nowMs     = int64(1700000000000)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clock() time.Time { return time.UnixMilli(nowMs) }

type testServer struct {
	handler   http.Handler
	settings  *memory.SettingsStore
	artifacts *memory.ArtifactStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	settings := memory.NewSettingsStore()
	artifacts := memory.NewArtifactStore(0)
	logger := discardLogger()

	engine := signature.New(signature.SHA256)
	h := httphandler.NewHandler(
		settings,
		application.NewHistoryService(artifacts, logger),
		application.NewStamper(settings, engine, clock),
		logger,
	)
	requireSig := httphandler.RequireSignature(httphandler.SignatureConfig{
		Secret:  accessKey,
		Engine:  engine,
		MaxSkew: 100 * time.Second,
		Now:     clock,
	}, logger)

	return &testServer{
		handler:   httphandler.NewServeMux(h, requireSig, logger),
		settings:  settings,
		artifacts: artifacts,
	}
}

// do sends a request signed with the access key.
func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	signature.SetHeader(req.Header, signature.Sign(accessKey, nowMs), nowMs)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHealth_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[httphandler.HealthResponse](t, rec).Status)
}

func TestHealth_StorageDown(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.settings.Close())

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSettings_RequiresSignature(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSettings_PatchMergesAndHidesKey(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPatch, "/api/v1/settings", `{"api_proxy":"https://proxy.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/v1/settings", `{"api_key":"X"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"X"`)

	resp := decode[httphandler.SettingsResponse](t, srv.do(t, http.MethodGet, "/api/v1/settings", ""))
	assert.Equal(t, "https://proxy.example.com", resp.APIProxy)
	assert.True(t, resp.HasAPIKey)

	stored, err := srv.settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "X", stored.APIKey)
}

func TestSettings_PatchValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty patch", `{}`},
		{"relative proxy", `{"api_proxy":"/just/a/path"}`},
		{"non-http proxy", `{"api_proxy":"ftp://proxy.example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPatch, "/api/v1/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSettings_Clear(t *testing.T) {
	srv := newTestServer(t)
	key := "k"
	_, err := srv.settings.Update(context.Background(), model.SettingsPatch{APIKey: &key})
	require.NoError(t, err)

	rec := srv.do(t, http.MethodDelete, "/api/v1/settings", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s, err := srv.settings.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, s.HasAPIKey())
}

func TestArtifacts_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/artifacts", `{"title":"Go GC","question":"How does it work?","report":"# GC","sources":["https://go.dev"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.ArtifactResponse](t, rec)
	require.NotEmpty(t, created.ID)

	rec = srv.do(t, http.MethodGet, "/api/v1/artifacts/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[httphandler.ArtifactResponse](t, rec)
	assert.Equal(t, "Go GC", got.Title)
	assert.Equal(t, []string{"https://go.dev"}, got.Sources)

	list := decode[[]httphandler.ArtifactResponse](t, srv.do(t, http.MethodGet, "/api/v1/artifacts", ""))
	assert.Len(t, list, 1)

	rec = srv.do(t, http.MethodDelete, "/api/v1/artifacts/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/artifacts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtifacts_SaveValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/artifacts", `{"report":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArtifacts_ClearKeepsSettings(t *testing.T) {
	srv := newTestServer(t)
	key := "keep"
	_, err := srv.settings.Update(context.Background(), model.SettingsPatch{APIKey: &key})
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/artifacts", `{"title":"a"}`).Code)

	rec := srv.do(t, http.MethodDelete, "/api/v1/artifacts", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	keys, err := srv.artifacts.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	s, err := srv.settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "keep", s.APIKey)
}

func TestArtifacts_StorageUnavailable(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.artifacts.Close())

	rec := srv.do(t, http.MethodPost, "/api/v1/artifacts", `{"title":"a"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSign_ReturnsVerifiableStamp(t *testing.T) {
	srv := newTestServer(t)
	key := "abc123"
	_, err := srv.settings.Update(context.Background(), model.SettingsPatch{APIKey: &key})
	require.NoError(t, err)

	rec := srv.do(t, http.MethodPost, "/api/v1/sign", "")
	require.Equal(t, http.StatusOK, rec.Code)

	stamp := decode[httphandler.StampResponse](t, rec)
	assert.Equal(t, nowMs, stamp.Timestamp)
	assert.True(t, signature.Verify(stamp.Signature, "abc123", stamp.Timestamp))
}

func TestSign_NoCredential(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/sign", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
