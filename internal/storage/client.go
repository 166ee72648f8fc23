package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidPath = errors.New("invalid object path")

// Object is one entry returned by a bucket listing.
type Object struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Metadata  struct {
		Size     int64  `json:"size"`
		MimeType string `json:"mimetype"`
	} `json:"metadata"`
}

type Client interface {
	Upload(ctx context.Context, token, path, contentType string, body io.Reader) (string, error)
	List(ctx context.Context, token, prefix string) ([]Object, error)
	PublicURL(path string) string
}

// HTTPClient talks to the Supabase Storage REST API for a single bucket,
// forwarding the caller's token so storage policies apply to the caller.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey, bucket string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) Bucket() string { return c.bucket }

// escapePath escapes each segment of an object path and rejects traversal.
func escapePath(path string) (string, error) {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/"), nil
}

func (c *HTTPClient) doReq(ctx context.Context, method, path, token, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("storage %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *HTTPClient) Upload(ctx context.Context, token, path, contentType string, body io.Reader) (string, error) {
	escaped, err := escapePath(path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := c.doReq(ctx, http.MethodPost, "/storage/v1/object/"+url.PathEscape(c.bucket)+"/"+escaped, token, contentType, body)
	if err != nil {
		return "", err
	}
	var out struct {
		Key string `json:"Key"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.Key == "" {
		out.Key = c.bucket + "/" + path
	}
	return out.Key, nil
}

func (c *HTTPClient) List(ctx context.Context, token, prefix string) ([]Object, error) {
	payload, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  100,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})
	if err != nil {
		return nil, err
	}
	data, err := c.doReq(ctx, http.MethodPost, "/storage/v1/object/list/"+url.PathEscape(c.bucket), token, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	objects := []Object{}
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return objects, nil
}

func (c *HTTPClient) PublicURL(path string) string {
	escaped, err := escapePath(path)
	if err != nil {
		escaped = url.PathEscape(path)
	}
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(c.bucket) + "/" + escaped
}
