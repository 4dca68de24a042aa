package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solweir/parley/internal/configuration"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&configuration.AgentConfig{
		URL:            server.URL,
		APIKey:         "secret",
		RequestTimeout: 5,
	})
}

func TestInvoke(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		request := &ChatRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(request))
		require.Equal(t, "helper", request.AgentName)
		require.Equal(t, "hello", request.Message)
		require.Equal(t, "c1", request.ConversationID)

		json.NewEncoder(w).Encode(&ChatResponse{Response: "hi there", ConversationID: "c1"})
	})

	response, err := client.Invoke(context.Background(), "helper", "hello", "c1")
	require.NoError(t, err)
	require.Equal(t, "hi there", response.Response)
	require.Equal(t, "c1", response.ConversationID)
}

func TestInvokeOmitsEmptyConversationID(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["conversation_id"]
		require.False(t, present)
		json.NewEncoder(w).Encode(&ChatResponse{Response: "hi", ConversationID: "c-new"})
	})

	response, err := client.Invoke(context.Background(), "helper", "hello", "")
	require.NoError(t, err)
	require.Equal(t, "c-new", response.ConversationID)
}

func TestInvokeErrorStatus(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream failure"))
	})

	_, err := client.Invoke(context.Background(), "helper", "hello", "c1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Contains(t, err.Error(), "upstream failure")
}

func TestInvokeMalformedResponse(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Invoke(context.Background(), "helper", "hello", "c1")
	require.Error(t, err)
}

func TestDeleteConversation(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/conversations/c1", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
	})

	require.NoError(t, client.DeleteConversation(context.Background(), "c1"))
}

func TestDeleteConversationErrorStatus(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	require.Error(t, client.DeleteConversation(context.Background(), "missing"))
}

func TestHealth(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(&HealthResponse{Status: "healthy", Message: "all agents ready"})
	})

	response, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", response.Status)
	require.Equal(t, "all agents ready", response.Message)
}
