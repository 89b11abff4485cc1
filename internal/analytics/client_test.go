package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEngine(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/SASLogon/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/sess-1/tables/metrics":
			w.Write([]byte("a,b\n1,2\n"))
		case r.URL.Path == "/sessions/sess-1/actions/fedsql.execDirect":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["query"] == "" {
				http.Error(w, `{"error":"empty query"}`, http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func testConfig(server *httptest.Server) Config {
	return Config{
		Remote:       server.URL,
		Hostname:     server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
	}
}

func TestNewClientAuthFailureIsFatal(t *testing.T) {
	server, _ := fakeEngine(t)
	cfg := testConfig(server)
	cfg.ClientSecret = "wrong"

	_, err := NewClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
}

func TestSessionLifecycle(t *testing.T) {
	server, calls := fakeEngine(t)
	client, err := NewClient(context.Background(), testConfig(server))
	require.NoError(t, err)

	ctx := context.Background()
	session, err := client.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session)

	require.NoError(t, client.UploadTable(ctx, session, "metrics", []byte("a,b\n1,2\n")))
	require.NoError(t, client.ExecDirect(ctx, session, "CREATE TABLE t AS SELECT 1"))

	body, err := client.FetchTable(ctx, session, "metrics")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	require.NoError(t, client.EndSession(ctx, session))

	assert.Equal(t, []string{
		"POST /sessions",
		"PUT /sessions/sess-1/tables/metrics",
		"POST /sessions/sess-1/actions/fedsql.execDirect",
		"GET /sessions/sess-1/tables/metrics",
		"DELETE /sessions/sess-1",
	}, *calls)
}

func TestExecDirectSurfacesEngineError(t *testing.T) {
	server, _ := fakeEngine(t)
	client, err := NewClient(context.Background(), testConfig(server))
	require.NoError(t, err)

	err = client.ExecDirect(context.Background(), "sess-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "empty query")
}

func TestComputeBase(t *testing.T) {
	assert.Equal(t, "https://cas.example.com/compute-shared-default-http", computeBase("cas.example.com"))
	assert.Equal(t, "http://127.0.0.1:9999", computeBase("http://127.0.0.1:9999/"))
}
