package proxyclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/signproxy/internal/adapter/driven/memory"
	"github.com/ericfisherdev/signproxy/internal/adapter/driven/proxyclient"
	"github.com/ericfisherdev/signproxy/internal/application"
	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/signature"
)

const testSecret = "abc123"

func newTestClient(t *testing.T, handler http.Handler, proxyPath string, key string) *proxyclient.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := memory.NewSettingsStore()
	proxy := server.URL + proxyPath
	_, err := store.Update(context.Background(), model.SettingsPatch{APIKey: &key, APIProxy: &proxy})
	require.NoError(t, err)

	stamper := application.NewStamper(store, signature.Engine{}, func() time.Time {
		return time.UnixMilli(1700000000000)
	})
	return proxyclient.NewWithHTTPClient(server.Client(), store, stamper)
}

// verifyingHandler plays the gateway: it recomputes the signature with its
// own copy of the secret.
func verifyingHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig, ts, hasTS, err := signature.FromHeader(r.Header)
		if err != nil || !hasTS || !signature.Verify(sig, testSecret, ts) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid signature"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write(append([]byte("echo:"), body...))
	})
}

func TestClient_SignedRequestAccepted(t *testing.T) {
	client := newTestClient(t, verifyingHandler(t), "/v1", testSecret)

	got, err := client.Do(context.Background(), http.MethodPost, "/chat", []byte(`{"q":1}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, `echo:{"q":1}`, string(got))
}

func TestClient_WrongKeyIsUpstreamUnauthorized(t *testing.T) {
	client := newTestClient(t, verifyingHandler(t), "/v1", "not-the-secret")

	_, err := client.Do(context.Background(), http.MethodPost, "chat", nil, "application/json")

	var upstream *proxyclient.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.True(t, upstream.Unauthorized())
	assert.Contains(t, upstream.Body, "invalid signature")
}

func TestClient_NoCredentialIsLocal(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }), "", "")

	_, err := client.Do(context.Background(), http.MethodGet, "/models", nil, "")
	assert.ErrorIs(t, err, application.ErrNoCredential)

	var upstream *proxyclient.UpstreamError
	assert.False(t, errors.As(err, &upstream))
	assert.False(t, called, "no request should leave without a credential")
}

func TestClient_NoProxy(t *testing.T) {
	store := memory.NewSettingsStore()
	client := proxyclient.NewWithHTTPClient(http.DefaultClient, store, application.NewStamper(store, signature.Engine{}, nil))

	_, err := client.Do(context.Background(), http.MethodGet, "/models", nil, "")
	assert.ErrorIs(t, err, proxyclient.ErrNoProxy)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	proxy := server.URL
	server.Close()

	store := memory.NewSettingsStore()
	key := testSecret
	_, err := store.Update(context.Background(), model.SettingsPatch{APIKey: &key, APIProxy: &proxy})
	require.NoError(t, err)

	client := proxyclient.NewWithHTTPClient(http.DefaultClient, store, application.NewStamper(store, signature.Engine{}, nil))
	_, err = client.Do(context.Background(), http.MethodGet, "/models", nil, "")
	assert.ErrorIs(t, err, proxyclient.ErrUnreachable)
}

func TestClient_CachedResponseDoesNotOutliveCredential(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		sig, ts, hasTS, err := signature.FromHeader(r.Header)
		if err != nil || !hasTS || !signature.Verify(sig, testSecret, ts) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Header().Set("ETag", `"models-v1"`)
		_, _ = w.Write([]byte(`{"models":["a"]}`))
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ctx := context.Background()
	store := memory.NewSettingsStore()
	key, proxy := testSecret, server.URL
	_, err := store.Update(ctx, model.SettingsPatch{APIKey: &key, APIProxy: &proxy})
	require.NoError(t, err)

	stamper := application.NewStamper(store, signature.Engine{}, func() time.Time {
		return time.UnixMilli(1700000000000)
	})
	cached := &http.Client{Transport: &httpcache.Transport{
		Transport: server.Client().Transport,
		Cache:     httpcache.NewMemoryCache(),
	}}
	client := proxyclient.NewWithHTTPClient(cached, store, stamper)

	got, err := client.Do(ctx, http.MethodGet, "/models", nil, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"models":["a"]}`, string(got))

	revoked := "revoked"
	_, err = store.Update(ctx, model.SettingsPatch{APIKey: &revoked})
	require.NoError(t, err)

	_, err = client.Do(ctx, http.MethodGet, "/models", nil, "")
	var upstream *proxyclient.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.True(t, upstream.Unauthorized())
	assert.Equal(t, int32(2), hits.Load())
}
