// Package remote is the HTTP client for the hosted memory store. The store
// itself is an external collaborator; this client only speaks its list,
// search, write, and capacity endpoints. Writes are upsert-idempotent by
// key on the server, which is what makes at-least-once pending-write replay
// safe, and every replayed write carries an idempotency key for any
// server-side action that cannot key purely on content.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/memctl/memctl/internal/intent"
	"github.com/memctl/memctl/internal/models"
)

// Client talks to the remote memory store for one (org, project) pair.
type Client struct {
	baseURL string
	org     string
	project string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a remote store client. An empty token disables auth.
func NewClient(baseURL, org, project, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		org:     org,
		project: project,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// prefix is the project-scoped API root.
func (c *Client) prefix() string {
	return fmt.Sprintf("%s/v1/orgs/%s/projects/%s",
		c.baseURL, url.PathEscape(c.org), url.PathEscape(c.project))
}

// listResponse is the paginated shape returned by the list endpoint.
type listResponse struct {
	Memories []models.MemoryRecord `json:"memories"`
}

// List fetches one page of memory records.
func (c *Client) List(ctx context.Context, limit, offset int) ([]models.MemoryRecord, error) {
	u := fmt.Sprintf("%s/memories?limit=%d&offset=%d", c.prefix(), limit, offset)

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, u, nil, "", &resp); err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	return resp.Memories, nil
}

// SearchRequest carries the classification-derived ranking strategy to the
// server-side search endpoint: the raw query, the intent weights, and the
// lexical-match key set from the full-text index (nil when unavailable).
type SearchRequest struct {
	Query       string                 `json:"query"`
	Intent      models.Intent          `json:"intent"`
	Weights     intent.Weights         `json:"weights"`
	LexicalKeys []string               `json:"lexical_keys,omitempty"`
	Types       []models.CandidateType `json:"types,omitempty"`
	Limit       int                    `json:"limit"`
}

// searchResponse is returned by the search endpoint.
type searchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// Search runs a server-side ranked search.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]models.SearchResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling search request: %w", err)
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.prefix()+"/search", body, "", &resp); err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}
	return resp.Results, nil
}

// Create upserts a record by key.
func (c *Client) Create(ctx context.Context, rec models.MemoryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}
	u := c.prefix() + "/memories/" + url.PathEscape(rec.Key)
	if err := c.do(ctx, http.MethodPut, u, body, "", nil); err != nil {
		return fmt.Errorf("upserting memory %q: %w", rec.Key, err)
	}
	return nil
}

// Delete removes a record by key.
func (c *Client) Delete(ctx context.Context, key string) error {
	u := c.prefix() + "/memories/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodDelete, u, nil, "", nil); err != nil {
		return fmt.Errorf("deleting memory %q: %w", key, err)
	}
	return nil
}

// Capacity fetches the server-reported project quota.
func (c *Client) Capacity(ctx context.Context) (models.Capacity, error) {
	var quota models.Capacity
	if err := c.do(ctx, http.MethodGet, c.prefix()+"/capacity", nil, "", &quota); err != nil {
		return models.Capacity{}, fmt.Errorf("fetching capacity: %w", err)
	}
	return quota, nil
}

// Do replays one buffered write against the store. The write's ID is sent
// as X-Idempotency-Key so duplicate replay after a crash is absorbed.
func (c *Client) Do(ctx context.Context, w models.PendingWrite) error {
	if err := c.do(ctx, w.Method, c.prefix()+w.Path, w.Body, w.ID, nil); err != nil {
		return fmt.Errorf("replaying %s %s: %w", w.Method, w.Path, err)
	}
	return nil
}

// do issues one request and decodes the JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, u string, body []byte, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling memory store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("memory store returned %d: %s", resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
