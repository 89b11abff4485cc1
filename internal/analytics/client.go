// Package analytics is the client for the remote analytical SQL engine. It
// authenticates with a client-credentials token exchange, opens a compute
// session, uploads CSV tables, and runs SQL against them. Failures are fatal
// to the pipeline run; there are no retries.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Config locates the identity endpoint and the compute host. All four values
// come from the environment; missing credentials are caught by config
// validation before a run starts.
type Config struct {
	Remote       string `yaml:"remote"`
	Hostname     string `yaml:"hostname"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Client talks to the remote execution engine over its HTTP surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient exchanges client credentials for a bearer token and verifies the
// exchange eagerly, so an auth failure surfaces before any computation.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     strings.TrimSuffix(cfg.Remote, "/") + "/SASLogon/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	if _, err := creds.TokenSource(ctx).Token(); err != nil {
		return nil, fmt.Errorf("auth failed: %w", err)
	}

	httpClient := creds.Client(ctx)
	httpClient.Timeout = 60 * time.Second

	return &Client{
		baseURL:    computeBase(cfg.Hostname),
		httpClient: httpClient,
	}, nil
}

// computeBase accepts either a bare hostname or a full URL, the latter for
// tests against a local server.
func computeBase(hostname string) string {
	if strings.HasPrefix(hostname, "http://") || strings.HasPrefix(hostname, "https://") {
		return strings.TrimSuffix(hostname, "/")
	}
	return fmt.Sprintf("https://%s/compute-shared-default-http", hostname)
}

// CreateSession opens a compute session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/sessions", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("create session: parse response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: empty session id in response")
	}
	return out.SessionID, nil
}

// UploadTable replaces the named in-session table with the given CSV content.
func (c *Client) UploadTable(ctx context.Context, sessionID, table string, csv []byte) error {
	path := fmt.Sprintf("/sessions/%s/tables/%s", sessionID, table)
	if _, err := c.do(ctx, http.MethodPut, path, "text/csv", bytes.NewReader(csv)); err != nil {
		return fmt.Errorf("upload table %s: %w", table, err)
	}
	return nil
}

// ExecDirect runs one SQL statement inside the session.
func (c *Client) ExecDirect(ctx context.Context, sessionID, query string) error {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("exec direct: marshal query: %w", err)
	}
	path := fmt.Sprintf("/sessions/%s/actions/fedsql.execDirect", sessionID)
	if _, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("exec direct: %w", err)
	}
	return nil
}

// FetchTable materializes a session table as CSV bytes.
func (c *Client) FetchTable(ctx context.Context, sessionID, table string) ([]byte, error) {
	path := fmt.Sprintf("/sessions/%s/tables/%s", sessionID, table)
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch table %s: %w", table, err)
	}
	return body, nil
}

// EndSession releases the compute session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, "", nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
