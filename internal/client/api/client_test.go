package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "password1", req.Password)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{Token: "token-abc", ExpiresIn: 86400})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "token-abc", resp.Token)
	assert.Equal(t, int64(86400), resp.ExpiresIn)
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Unauthorized", Message: "invalid credentials"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/items", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]api.Item{
			{ID: "1", Name: "Alien", Price: 10},
			{ID: "2", Name: "Heat", Cinema: true},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	items, err := client.List(context.Background(), "token-abc")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Alien", items[0].Name)
	assert.True(t, items[1].Cinema)
}

func TestClient_Create_ReturnsCanonicalRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/items", r.URL.Path)

		var item api.Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "local-1", item.LocalID)
		assert.Empty(t, item.ID)

		item.ID = "42"
		item.UserID = "alice"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(item)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	patch, err := client.Create(context.Background(), "token-abc", api.Item{LocalID: "local-1", Name: "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "42", patch.ID)
	assert.Equal(t, "local-1", patch.LocalID)
	require.NotNil(t, patch.Name)
	assert.Equal(t, "Dune", *patch.Name)
}

func TestClient_Create_PartialResponseLeavesFieldsUndefined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// minimal canonical response: identity only
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"42","_localId":"local-1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	patch, err := client.Create(context.Background(), "token-abc", api.Item{LocalID: "local-1", Name: "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "42", patch.ID)
	assert.Nil(t, patch.Name, "absent fields must stay undefined for the merge")
	assert.Nil(t, patch.Price)
}

func TestClient_Update(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/items/42", r.URL.Path)

		var item api.Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		_ = json.NewEncoder(w).Encode(item)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	patch, err := client.Update(context.Background(), "token-abc", api.Item{ID: "42", Name: "Dune 2"})
	require.NoError(t, err)
	assert.Equal(t, "42", patch.ID)
}

func TestClient_Delete(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/items/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	require.NoError(t, client.Delete(context.Background(), "token-abc", "42"))
	assert.True(t, called)
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ping", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_UnauthorizedDistinctFromServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.List(context.Background(), "token-abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
