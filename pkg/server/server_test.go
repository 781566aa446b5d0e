package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/driftwatch/pkg/auditlog"
	"github.com/greywatch/driftwatch/pkg/auth"
	"github.com/greywatch/driftwatch/pkg/template"
)

func newTestServer(t *testing.T) (*Server, *auth.KeyStore) {
	t.Helper()
	dir := t.TempDir()

	log, err := auditlog.Open(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	keys, err := auth.NewKeyStore(filepath.Join(dir, "keys.yaml"))
	require.NoError(t, err)

	s := New()
	s.Templates = template.NewStore(dir)
	s.Log = log
	s.Keys = keys
	return s, keys
}

func TestManifestAndStatusAreUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestCapturesRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/captures", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReadonlyKeyForbiddenFromCaptures(t *testing.T) {
	s, keys := newTestServer(t)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	plaintext, _, err := keys.CreateKey("viewer", auth.RoleReadonly, "")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/captures", bytes.NewReader([]byte(`{"root":{"role":"button","name":"x"}}`)))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", plaintext)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOperatorKeyCanCapture(t *testing.T) {
	s, keys := newTestServer(t)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	plaintext, _, err := keys.CreateKey("ci-bot", auth.RoleOperator, "")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{
		"root": map[string]any{
			"role": "form",
			"children": []any{
				map[string]any{"role": "button", "name": "submit"},
			},
		},
	})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/captures", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", plaintext)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Contains(t, decoded, "signature")
}

func TestAdminOnlyCanIssueKeys(t *testing.T) {
	s, keys := newTestServer(t)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	operatorKey, _, err := keys.CreateKey("ci-bot", auth.RoleOperator, "")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"name": "new-key", "role": "readonly"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/token", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", operatorKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminKey, _, err := keys.CreateKey("root", auth.RoleAdmin, "")
	require.NoError(t, err)

	req2, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/token", bytes.NewReader(body))
	require.NoError(t, err)
	req2.Header.Set("X-API-Key", adminKey)

	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusCreated, resp2.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&decoded))
	assert.Contains(t, decoded, "key")
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	s, keys := newTestServer(t)
	s.Limiter = auth.NewRateLimiter(auth.NewInProcessLimiterStore(), 1000, 3)
	srv := httptest.NewServer(s.Mux())
	defer srv.Close()

	plaintext, _, err := keys.CreateKey("ci-bot", auth.RoleOperator, "")
	require.NoError(t, err)

	var lastStatus int
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/captures", bytes.NewReader([]byte(`{"root":{"role":"button","name":"x"}}`)))
		require.NoError(t, err)
		req.Header.Set("X-API-Key", plaintext)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		lastStatus = resp.StatusCode
		resp.Body.Close()
	}
	assert.Equal(t, http.StatusTooManyRequests, lastStatus)
}
