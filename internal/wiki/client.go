package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stenmark/docbridge/internal/apperr"
	"github.com/stenmark/docbridge/internal/models"
)

// HTTPClient implements Client against the wiki's REST API. Retries are the
// transport's concern; the engine never retries on top of it.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the wiki at baseURL, authenticating
// with a bearer token when token is non-empty.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type pagePayload struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	SpaceKey string `json:"space_key,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Version  int    `json:"version,omitempty"`
	Body     string `json:"body,omitempty"`
}

// GetPage fetches a page with its storage body.
func (c *HTTPClient) GetPage(ctx context.Context, pageID string) (*models.RemotePage, error) {
	var out models.RemotePage
	if err := c.do(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(pageID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSpacePages lists the pages of a space.
func (c *HTTPClient) GetSpacePages(ctx context.Context, spaceKey string) ([]models.PageSummary, error) {
	var out struct {
		Pages []models.PageSummary `json:"pages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/spaces/"+url.PathEscape(spaceKey)+"/pages", nil, &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// CreatePage creates a page and returns its id.
func (c *HTTPClient) CreatePage(ctx context.Context, spaceKey, title, storageBody, parentID string) (string, error) {
	req := pagePayload{Title: title, SpaceKey: spaceKey, ParentID: parentID, Body: storageBody}
	var out pagePayload
	if err := c.do(ctx, http.MethodPost, "/api/pages", &req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: create returned no page id", apperr.ErrRemoteAPI)
	}
	return out.ID, nil
}

// UpdatePage updates a page, guarded by the version the caller last
// observed, and returns the new version assigned by the wiki.
func (c *HTTPClient) UpdatePage(ctx context.Context, pageID, title, storageBody string, expectedVersion int) (int, error) {
	req := pagePayload{Title: title, Body: storageBody, Version: expectedVersion}
	var out pagePayload
	if err := c.do(ctx, http.MethodPut, "/api/pages/"+url.PathEscape(pageID), &req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("wiki: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("wiki: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrRemoteAPI, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s %s", apperr.ErrVersionConflict, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			apperr.ErrRemoteAPI, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", apperr.ErrRemoteAPI, err)
		}
	}
	return nil
}
