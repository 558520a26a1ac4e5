// Package registry provides the HTTP client for the Parcel registry API.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// Client is an HTTP client for the Parcel registry API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// NewClient creates a new registry client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithToken sets the authentication token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// request performs an HTTP request against the registry API.
func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	url := c.baseURL + "/api/v1" + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// parseResponse parses a JSON response into the given target.
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, errResp.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// FindByHash looks up an existing release by content hash.
// A missing release is (nil, nil); any transport or server error is returned as-is.
func (c *Client) FindByHash(ctx context.Context, hash digest.Digest) (*ReleaseRecord, error) {
	resp, err := c.request(ctx, http.MethodGet, "/releases/by-hash/"+hash.String(), nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}

	var record ReleaseRecord
	if err := parseResponse(resp, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// RequestUpload asks the registry for a signed upload destination for hash.
func (c *Client) RequestUpload(ctx context.Context, hash digest.Digest) (*UploadDestination, error) {
	body := struct {
		Hash string `json:"hash"`
	}{Hash: hash.String()}

	resp, err := c.request(ctx, http.MethodPost, "/uploads", body)
	if err != nil {
		return nil, err
	}

	var dest UploadDestination
	if err := parseResponse(resp, &dest); err != nil {
		return nil, err
	}

	return &dest, nil
}

// Transfer streams the archive bytes to a signed upload destination.
// The destination URL is absolute and pre-authenticated, so the request
// goes out without the API prefix or bearer token.
func (c *Client) Transfer(ctx context.Context, dest *UploadDestination, archivePath string, timeout time.Duration) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.URL, f)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	// The signed URL carries its own auth; use a client without the
	// API-level timeout so only the upload timeout applies.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	return nil
}

// RegisterRelease registers an uploaded archive as a release in namespace.
func (c *Client) RegisterRelease(ctx context.Context, namespace string, dest *UploadDestination, private bool) (*PushResult, error) {
	body := struct {
		Namespace string `json:"namespace"`
		UploadURL string `json:"upload_url"`
		Private   bool   `json:"private"`
	}{Namespace: namespace, UploadURL: dest.URL, Private: private}

	resp, err := c.request(ctx, http.MethodPost, "/releases", body)
	if err != nil {
		return nil, err
	}

	var result PushResult
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// PollStatus fetches the readiness status of a pushed release.
func (c *Client) PollStatus(ctx context.Context, releaseID string) (*ReleaseStatus, error) {
	resp, err := c.request(ctx, http.MethodGet, "/releases/"+releaseID+"/status", nil)
	if err != nil {
		return nil, err
	}

	var status ReleaseStatus
	if err := parseResponse(resp, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// CurrentIdentity returns the authenticated user and their namespaces.
func (c *Client) CurrentIdentity(ctx context.Context) (*Identity, error) {
	resp, err := c.request(ctx, http.MethodGet, "/identity", nil)
	if err != nil {
		return nil, err
	}

	var id Identity
	if err := parseResponse(resp, &id); err != nil {
		return nil, err
	}

	return &id, nil
}

// GetPackage returns the read-path summary for namespace/name.
func (c *Client) GetPackage(ctx context.Context, namespace, name string) (*PackageSummary, error) {
	resp, err := c.request(ctx, http.MethodGet, "/packages/"+namespace+"/"+name, nil)
	if err != nil {
		return nil, err
	}

	var pkg PackageSummary
	if err := parseResponse(resp, &pkg); err != nil {
		return nil, err
	}

	return &pkg, nil
}
