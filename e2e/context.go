// Package e2e drives a running KYC server through its public HTTP API.
//
// The server and a provisioned user are set up outside the suite:
//
//	kycctl token --user <uuid> --provision --email e2e@example.com
//
// and the results are passed in through KYC_E2E_* variables.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// TestContext holds the per-scenario client state shared by every step package.
type TestContext struct {
	BaseURL    string
	UserID     string
	AdminToken string

	token       string
	client      *http.Client
	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
	savedValues map[string]string
	sendAsUser  bool
	sendAsAdmin bool
}

// NewTestContextFromEnv reads the target server and credentials.
func NewTestContextFromEnv() (*TestContext, error) {
	base := strings.TrimRight(os.Getenv("KYC_E2E_BASE_URL"), "/")
	if base == "" {
		return nil, fmt.Errorf("KYC_E2E_BASE_URL is not set")
	}
	return &TestContext{
		BaseURL:     base,
		UserID:      os.Getenv("KYC_E2E_USER_ID"),
		token:       os.Getenv("KYC_E2E_TOKEN"),
		AdminToken:  os.Getenv("KYC_E2E_ADMIN_TOKEN"),
		client:      &http.Client{Timeout: 30 * time.Second},
		savedValues: map[string]string{},
	}, nil
}

// Reset clears response state between scenarios.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.savedValues = map[string]string{}
	tc.sendAsUser = false
	tc.sendAsAdmin = false
}

func (tc *TestContext) ActAsUser() { tc.sendAsUser, tc.sendAsAdmin = true, false }

func (tc *TestContext) ActAsAdmin() { tc.sendAsUser, tc.sendAsAdmin = false, true }

func (tc *TestContext) ActAnonymously() { tc.sendAsUser, tc.sendAsAdmin = false, false }

func (tc *TestContext) Token() string { return tc.token }

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, "")
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.sendJSON(http.MethodPost, path, body)
}

func (tc *TestContext) PATCH(path string, body any) error {
	return tc.sendJSON(http.MethodPatch, path, body)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, "")
}

// Upload sends data as the "file" field of a multipart form.
func (tc *TestContext) Upload(path, fileName string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, &buf, mw.FormDataContentType())
}

func (tc *TestContext) sendJSON(method, path string, body any) error {
	if body == nil {
		return tc.do(method, path, nil, "")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(method, path, bytes.NewReader(raw), "application/json")
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+tc.Expand(path), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	switch {
	case tc.sendAsUser:
		req.Header.Set("Authorization", "Bearer "+tc.token)
	case tc.sendAsAdmin:
		req.Header.Set("X-Admin-Token", tc.AdminToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetLastResponseHeader(k string) string {
	if tc.lastHeaders == nil {
		return ""
	}
	return tc.lastHeaders.Get(k)
}

// GetResponseField resolves a dotted path such as "metrics.total_receipts" or
// "components.0.name" in the last JSON body.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("field %q not found", path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", seg, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", path)
		}
	}
	return cur, nil
}

// Save remembers a value for later {name} substitution in paths.
func (tc *TestContext) Save(name, value string) { tc.savedValues[name] = value }

// Expand replaces {name} placeholders with saved values and {user_id}.
func (tc *TestContext) Expand(path string) string {
	path = strings.ReplaceAll(path, "{user_id}", tc.UserID)
	for k, v := range tc.savedValues {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	return path
}
