package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL    = "http://localhost:8080"
	defaultAdminToken = "e2e-admin-token"
)

// TestContext holds per-scenario HTTP state against a running server.
type TestContext struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client

	clientIP    string
	bearer      string
	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
	remembered  map[string]string
	signingKeys map[string][]byte
}

// NewTestContext reads VOTECHAIN_E2E_BASE_URL and VOTECHAIN_E2E_ADMIN_TOKEN.
func NewTestContext() *TestContext {
	base := os.Getenv("VOTECHAIN_E2E_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	token := os.Getenv("VOTECHAIN_E2E_ADMIN_TOKEN")
	if token == "" {
		token = defaultAdminToken
	}
	return &TestContext{
		BaseURL:    base,
		AdminToken: token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears scenario state and picks a fresh client address so rate
// limit windows do not leak between scenarios.
func (tc *TestContext) Reset() {
	tc.clientIP = fmt.Sprintf("198.18.%d.%d", rand.IntN(256), 1+rand.IntN(254))
	tc.bearer = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.remembered = map[string]string{}
	tc.signingKeys = map[string][]byte{}
}

func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	if tc.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+tc.bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.Do(http.MethodPut, path, body, nil)
}

func (tc *TestContext) GET(path string) error {
	return tc.Do(http.MethodGet, path, nil, nil)
}

func (tc *TestContext) AdminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": tc.AdminToken}
}

func (tc *TestContext) SetBearer(token string) { tc.bearer = token }

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

func (tc *TestContext) LastBody() []byte { return tc.lastBody }

func (tc *TestContext) LastHeader(name string) string { return tc.lastHeaders.Get(name) }

// Field returns a top-level field of the last JSON response.
func (tc *TestContext) Field(name string) (any, error) {
	var out map[string]any
	if err := json.Unmarshal(tc.lastBody, &out); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w (body: %s)", err, tc.lastBody)
	}
	v, ok := out[name]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", name, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) Remember(key, value string) { tc.remembered[key] = value }

func (tc *TestContext) Recall(key string) string { return tc.remembered[key] }

func (tc *TestContext) SetSigningKey(voterID string, key []byte) { tc.signingKeys[voterID] = key }

func (tc *TestContext) SigningKey(voterID string) []byte { return tc.signingKeys[voterID] }
