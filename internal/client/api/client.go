package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// ErrUnauthorized is returned when the store rejects the bearer token.
// Callers must treat it as "re-authenticate", never as a connectivity
// failure: an unauthorized mutation will not succeed on retry.
var ErrUnauthorized = errors.New("unauthorized")

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI defines the remote store operations the client consumes.
type ClientAPI interface {
	// Register регистрирует нового пользователя
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)

	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// Ping probes the store's health endpoint.
	Ping(ctx context.Context) error

	// List returns the authenticated caller's items.
	List(ctx context.Context, token string) ([]api.Item, error)

	// Create stores a new item; the server assigns the id and owner.
	Create(ctx context.Context, token string, item api.Item) (*api.ItemPatch, error)

	// Update replaces an existing item by its server id.
	Update(ctx context.Context, token string, item api.Item) (*api.ItemPatch, error)

	// Delete removes an item by its server id. Idempotent.
	Delete(ctx context.Context, token, id string) error
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Bounded wait so a stuck request cannot wedge a sync run.
			Timeout: 10 * time.Second,
		},
	}
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Ping probes the store's lightweight health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/ping", "", nil, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// List returns the authenticated caller's items.
func (c *Client) List(ctx context.Context, token string) ([]api.Item, error) {
	var items []api.Item
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/items", token, nil, &items); err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	return items, nil
}

// Create stores a new item and returns the canonical record.
func (c *Client) Create(ctx context.Context, token string, item api.Item) (*api.ItemPatch, error) {
	var resp api.ItemPatch
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/items", token, item, &resp); err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	return &resp, nil
}

// Update replaces an existing item and returns the canonical record.
func (c *Client) Update(ctx context.Context, token string, item api.Item) (*api.ItemPatch, error) {
	var resp api.ItemPatch
	path := "/api/v1/items/" + url.PathEscape(item.ID)
	if err := c.doRequest(ctx, http.MethodPut, path, token, item, &resp); err != nil {
		return nil, fmt.Errorf("update request failed: %w", err)
	}
	return &resp, nil
}

// Delete removes an item by its server id.
func (c *Client) Delete(ctx context.Context, token, id string) error {
	path := "/api/v1/items/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, token, nil, nil); err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result interface{}) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("server rejected token (%d): %w", resp.StatusCode, ErrUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
