package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Uploads wait for narrative generation, so the default is generous.
	defaultHTTPTimeout = 2 * time.Minute
	httpTimeoutEnvKey  = "MEMGARDEN_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the memgarden API.
type Client struct {
	baseURL string
	http    *http.Client
}

// UploadFile is one photo sent in a multipart request.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// ContextOverrides carries optional context fields for a replace. A nil field
// is not sent; a non-nil blank field clears the stored value.
type ContextOverrides struct {
	Date    *string
	Place   *string
	Weather *string
	Notes   *string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// CreateStory uploads photos with their context.
func (c *Client) CreateStory(ctx context.Context, sc StoryContext, files []UploadFile) (StoryResponse, error) {
	var resp StoryResponse
	fields := map[string]string{"date": sc.Date, "place": sc.Place, "weather": sc.Weather}
	if sc.Notes != "" {
		fields["notes"] = sc.Notes
	}
	err := c.doMultipart(ctx, http.MethodPost, "/v1/stories", fields, files, &resp)
	return resp, err
}

// ReplacePhotos swaps a story's photos.
func (c *Client) ReplacePhotos(ctx context.Context, id string, overrides ContextOverrides, files []UploadFile) (StoryResponse, error) {
	var resp StoryResponse
	fields := map[string]string{}
	for key, value := range map[string]*string{
		"date":    overrides.Date,
		"place":   overrides.Place,
		"weather": overrides.Weather,
		"notes":   overrides.Notes,
	} {
		if value != nil {
			fields[key] = *value
		}
	}
	err := c.doMultipart(ctx, http.MethodPut, StoryPath(url.PathEscape(id))+"/photos", fields, files, &resp)
	return resp, err
}

// GetStory fetches one story.
func (c *Client) GetStory(ctx context.Context, id string) (StoryResponse, error) {
	var resp StoryResponse
	err := c.do(ctx, http.MethodGet, StoryPath(url.PathEscape(id)), nil, nil, &resp)
	return resp, err
}

// ListStories fetches stories newest first.
func (c *Client) ListStories(ctx context.Context, limit, offset int) ([]StoryResponse, error) {
	var resp []StoryResponse
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	err := c.do(ctx, http.MethodGet, "/v1/stories", query, nil, &resp)
	return resp, err
}

// ListPhotos fetches the photo refs of one story.
func (c *Client) ListPhotos(ctx context.Context, id string) ([]PhotoResponse, error) {
	var resp []PhotoResponse
	err := c.do(ctx, http.MethodGet, StoryPath(url.PathEscape(id))+"/photos", nil, nil, &resp)
	return resp, err
}

// DeleteStory removes target ("photos", "prompt", "narrative" or "all").
func (c *Client) DeleteStory(ctx context.Context, id, target string) (DeleteResponse, error) {
	var resp DeleteResponse
	query := url.Values{}
	if target != "" {
		query.Set("target", target)
	}
	err := c.do(ctx, http.MethodDelete, StoryPath(url.PathEscape(id)), query, nil, &resp)
	return resp, err
}

// DownloadPhoto streams photo bytes to w and returns the content type.
func (c *Client) DownloadPhoto(ctx context.Context, id, photoID string, w io.Writer) (string, error) {
	endpoint := c.baseURL + PhotoPath(url.PathEscape(id), url.PathEscape(photoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

// SweepOrphans runs the orphan blob sweep. olderThan of zero uses the
// server's grace period.
func (c *Client) SweepOrphans(ctx context.Context, olderThan time.Duration, apply bool) (SweepResponse, error) {
	var resp SweepResponse
	query := url.Values{}
	if apply {
		query.Set("apply", "true")
	}
	if olderThan > 0 {
		query.Set("older_than", olderThan.String())
	}
	endpoint := c.baseURL + "/v1/admin/gc"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return resp, err
	}
	if apply {
		req.Header.Set("X-Confirm", "true")
	}
	err = c.send(req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, files []UploadFile, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("photos", f.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
			Detail:    errResp.Detail,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
