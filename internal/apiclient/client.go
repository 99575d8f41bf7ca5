// Package apiclient is the HTTP client the CLI uses against the daemon API.
// It speaks the DTOs from internal/api and surfaces the server's error
// envelope as typed errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
)

// APIError is a non-2xx answer from the daemon, carrying the error
// envelope's code and message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("daemon: http %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New returns a client for the daemon at baseURL, e.g. "http://127.0.0.1:7910".
// The default transport carries no global timeout; callers bound slow calls
// through the context so long uploads are not cut off mid-stream.
func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Status fetches the daemon status document.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.StatusResponse
	if err := c.getJSON(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

// ListJobs returns jobs, optionally filtered to the given statuses.
func (c *Client) ListJobs(ctx context.Context, statuses ...string) ([]api.JobView, error) {
	target := "/api/jobs"
	if len(statuses) > 0 {
		query := url.Values{}
		for _, status := range statuses {
			query.Add("status", status)
		}
		target += "?" + query.Encode()
	}
	var resp api.JobListResponse
	if err := c.getJSON(ctx, target, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob fetches one job with its queue position and download link filled.
func (c *Client) GetJob(ctx context.Context, id string) (*api.JobView, error) {
	var resp api.JobResponse
	if err := c.getJSON(ctx, "/api/jobs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// CancelJob requests cancellation and returns the resulting job view.
func (c *Client) CancelJob(ctx context.Context, id string) (*api.JobView, error) {
	var resp api.JobResponse
	if err := c.postJSON(ctx, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// SubmitIngest submits a URL-backed ingestion.
func (c *Client) SubmitIngest(ctx context.Context, req api.IngestRequest) (*api.SubmitResponse, error) {
	var resp api.SubmitResponse
	if err := c.postJSON(ctx, "/api/ingest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitUpload streams a local media file into an ingestion job. sourceType
// is audio_file or video_file.
func (c *Client) SubmitUpload(ctx context.Context, sourceType, filename string, media io.Reader) (*api.SubmitResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()
		if err = mw.WriteField("sourceType", sourceType); err != nil {
			return
		}
		var fw io.Writer
		if fw, err = mw.CreateFormFile("file", filename); err != nil {
			return
		}
		if _, err = io.Copy(fw, media); err != nil {
			return
		}
		err = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ingest", pr)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp api.SubmitResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitPreview submits a preview render of the recipe.
func (c *Client) SubmitPreview(ctx context.Context, assetID string, rec recipe.Recipe) (*api.SubmitResponse, error) {
	return c.submitRecipe(ctx, assetID, "preview", rec)
}

// SubmitSave submits a final render of the recipe.
func (c *Client) SubmitSave(ctx context.Context, assetID string, rec recipe.Recipe) (*api.SubmitResponse, error) {
	return c.submitRecipe(ctx, assetID, "save", rec)
}

func (c *Client) submitRecipe(ctx context.Context, assetID, action string, rec recipe.Recipe) (*api.SubmitResponse, error) {
	var resp api.SubmitResponse
	target := "/api/assets/" + url.PathEscape(assetID) + "/" + action
	if err := c.postJSON(ctx, target, rec, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAssets returns the asset catalog, newest first.
func (c *Client) ListAssets(ctx context.Context) ([]api.AssetView, error) {
	var resp api.AssetListResponse
	if err := c.getJSON(ctx, "/api/assets", &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

// GetAsset fetches one asset with its stored objects.
func (c *Client) GetAsset(ctx context.Context, id string) (*api.AssetResponse, error) {
	var resp api.AssetResponse
	if err := c.getJSON(ctx, "/api/assets/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteAsset removes an asset; force skips the reference and active-job
// checks.
func (c *Client) DeleteAsset(ctx context.Context, id string, force bool) error {
	target := "/api/assets/" + url.PathEscape(id)
	if force {
		target += "?force=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+target, nil)
	if err != nil {
		return fmt.Errorf("apiclient: build delete request: %w", err)
	}
	var resp api.DeleteResponse
	return c.doJSON(req, &resp)
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, nil)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+target, reader)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return apiErrorFrom(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

func apiErrorFrom(status int, body []byte) error {
	var envelope api.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{StatusCode: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
