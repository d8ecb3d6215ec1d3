// Package client talks to a running filevc server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"filevc/internal/diff"
	"filevc/internal/errors"
	"filevc/shared/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// Changes is the staged/unstaged split of pending changes
type Changes struct {
	Staged   []shared.PendingChange `json:"staged"`
	Unstaged []shared.PendingChange `json:"unstaged"`
}

type Preview struct {
	Change *shared.Change `json:"change"`
	Stats  diff.Stats     `json:"stats"`
}

// ApplyEdit returns a nil change when the content was already current.
func (c *Client) ApplyEdit(ctx context.Context, path, content, description string) (*shared.Change, error) {
	var change shared.Change
	status, err := c.do(ctx, http.MethodPost, "/api/edits", map[string]string{
		"path":        path,
		"content":     content,
		"description": description,
	}, &change)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &change, nil
}

func (c *Client) Preview(ctx context.Context, path, content string) (*Preview, error) {
	var p Preview
	_, err := c.do(ctx, http.MethodPost, "/api/edits/preview", map[string]string{
		"path":    path,
		"content": content,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Versions(ctx context.Context) ([]shared.Version, error) {
	var versions []shared.Version
	if _, err := c.do(ctx, http.MethodGet, "/api/versions", nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *Client) Revert(ctx context.Context, versionID string) ([]shared.Change, error) {
	var changes []shared.Change
	path := "/api/versions/" + url.PathEscape(versionID) + "/revert"
	if _, err := c.do(ctx, http.MethodPost, path, nil, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (c *Client) AddChange(ctx context.Context, path, content string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/changes", map[string]string{
		"path":    path,
		"content": content,
	}, nil)
	return err
}

func (c *Client) Changes(ctx context.Context) (*Changes, error) {
	var changes Changes
	if _, err := c.do(ctx, http.MethodGet, "/api/changes", nil, &changes); err != nil {
		return nil, err
	}
	return &changes, nil
}

func (c *Client) Stage(ctx context.Context, path string) (bool, error) {
	return c.pathAction(ctx, "/api/changes/stage", path)
}

func (c *Client) Unstage(ctx context.Context, path string) (bool, error) {
	return c.pathAction(ctx, "/api/changes/unstage", path)
}

func (c *Client) Discard(ctx context.Context, path string) error {
	_, err := c.pathAction(ctx, "/api/changes/discard", path)
	return err
}

func (c *Client) pathAction(ctx context.Context, endpoint, path string) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	if _, err := c.do(ctx, http.MethodPost, endpoint, map[string]string{"path": path}, &result); err != nil {
		return false, err
	}
	return result.Success, nil
}

func (c *Client) Commit(ctx context.Context, message string) ([]shared.Change, error) {
	var changes []shared.Change
	if _, err := c.do(ctx, http.MethodPost, "/api/commits", map[string]string{"message": message}, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (c *Client) Locks(ctx context.Context) ([]string, error) {
	var locks []string
	if _, err := c.do(ctx, http.MethodGet, "/api/locks", nil, &locks); err != nil {
		return nil, err
	}
	return locks, nil
}

func (c *Client) Unlock(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/locks?"+url.Values{"path": {path}}.Encode(), nil, nil)
	return err
}

// do sends body as JSON and decodes a 2xx response into out. Error
// responses come back as *errors.Error so callers can use errors.Is.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errors.Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Type == "" {
			return resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status)
		}
		return resp.StatusCode, &apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
