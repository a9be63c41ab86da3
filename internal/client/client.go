// Package client wraps HTTP calls to the agent API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/autopilot/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// ErrNotFound matches any 404 response via errors.Is.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Is lets errors.Is(err, ErrNotFound) match 404s.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// HealthResponse matches the daemon's health payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Client talks to the agent API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout overrides DefaultClientTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client with timeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// GetAgent fetches one agent including its autonomous tasks.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &agent); err != nil {
		return nil, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// ListAgents fetches all agents.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &agents); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// CreateAgent creates an agent with no tasks.
func (c *Client) CreateAgent(ctx context.Context, name string) (*models.Agent, error) {
	var agent models.Agent
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/agents", body, &agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &agent, nil
}

// UpdateAgent replaces the whole agent and returns the stored version.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, agent *models.Agent) (*models.Agent, error) {
	var updated models.Agent
	if err := c.do(ctx, http.MethodPut, "/agents/"+url.PathEscape(agentID), agent, &updated); err != nil {
		return nil, fmt.Errorf("update agent %s: %w", agentID, err)
	}
	return &updated, nil
}

// GetChatMessages fetches up to limit messages from a chat channel, newest
// first.
func (c *Client) GetChatMessages(ctx context.Context, agentID, chatID string, limit int) (*models.MessagePage, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/chats/" + url.PathEscape(chatID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var page models.MessagePage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("get messages %s/%s: %w", agentID, chatID, err)
	}
	return &page, nil
}

// PostChatMessage appends an execution record to a chat channel.
func (c *Client) PostChatMessage(ctx context.Context, agentID, chatID string, msg models.ExecutionMessage) (*models.ExecutionMessage, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/chats/" + url.PathEscape(chatID) + "/messages"

	var stored models.ExecutionMessage
	if err := c.do(ctx, http.MethodPost, path, msg, &stored); err != nil {
		return nil, fmt.Errorf("post message %s/%s: %w", agentID, chatID, err)
	}
	return &stored, nil
}

// GetAuditLog fetches the most recent decision records for an agent.
func (c *Client) GetAuditLog(ctx context.Context, agentID string, limit int) ([]models.DecisionRecord, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Data []models.DecisionRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get audit log %s: %w", agentID, err)
	}
	return resp.Data, nil
}

// CheckHealth checks if the API is healthy. The parsed payload is returned
// alongside the error on non-200 responses.
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &health)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		json.Unmarshal([]byte(apiErr.Body), &health)
		return &health, fmt.Errorf("health check failed: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
