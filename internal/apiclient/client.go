// Package apiclient is the typed HTTP client for the jdc backend REST
// surface: workspace CRUD, replace-all item sync, and label extraction.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pbaille/jdc/internal/domain"
)

// ErrWorkspaceNotFound distinguishes a stale workspace id (404 on load)
// from generic transport failure. Callers discard the stored id on the
// former and keep it for retry on the latter.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Client talks to one jdc backend.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]domain.WorkspaceSummary, error) {
	var out []domain.WorkspaceSummary
	if err := c.do(ctx, http.MethodGet, "/jd-sets", nil, &out); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return out, nil
}

// CreateWorkspace creates a workspace; an empty name lets the backend
// pick its default.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (*domain.WorkspaceDetail, error) {
	body := map[string]any{"name": nil}
	if strings.TrimSpace(name) != "" {
		body["name"] = name
	}
	var out domain.WorkspaceDetail
	if err := c.do(ctx, http.MethodPost, "/jd-sets", body, &out); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &out, nil
}

func (c *Client) LoadWorkspace(ctx context.Context, id string) (*domain.WorkspaceDetail, error) {
	var out domain.WorkspaceDetail
	if err := c.do(ctx, http.MethodGet, "/jd-sets/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return &out, nil
}

func (c *Client) RenameWorkspace(ctx context.Context, id, name string) (*domain.WorkspaceDetail, error) {
	var out domain.WorkspaceDetail
	if err := c.do(ctx, http.MethodPut, "/jd-sets/"+id, map[string]any{"name": name}, &out); err != nil {
		return nil, fmt.Errorf("rename workspace: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/jd-sets/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// SyncItems replaces the workspace's whole item list with the snapshot.
func (c *Client) SyncItems(ctx context.Context, id string, items []domain.ItemSnapshot) error {
	if items == nil {
		items = []domain.ItemSnapshot{}
	}
	body := map[string]any{"items": items}
	if err := c.do(ctx, http.MethodPut, "/jd-sets/"+id+"/items", body, nil); err != nil {
		return fmt.Errorf("sync items: %w", err)
	}
	return nil
}

func (c *Client) ExtractLabel(ctx context.Context, text string, provider domain.Provider) (*domain.LabelResult, error) {
	body := map[string]any{"text": text, "provider": provider}
	var out domain.LabelResult
	if err := c.do(ctx, http.MethodPost, "/labels/extract", body, &out); err != nil {
		return nil, fmt.Errorf("extract label: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrWorkspaceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
