// Package agent implements the client for the remote conversational-agent
// service: a single request/response chat call plus the companion health and
// conversation-delete endpoints.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/solweir/parley/internal/configuration"
)

const apiKeyHeader = "X-API-Key"

// ChatRequest is the JSON body sent to POST /chat.
type ChatRequest struct {
	AgentName      string `json:"agent_name"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the JSON body returned by POST /chat.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// HealthResponse is the JSON body returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client is the consumed capability over the agent service.
type Client interface {
	// Invoke sends a message to the named agent. There is no retry and no
	// client-side cancellation once the request is issued; the configured
	// timeout is the only bound.
	Invoke(ctx context.Context, agentName, message, conversationID string) (*ChatResponse, error)
	// DeleteConversation clears the agent's server-side memory of a conversation.
	DeleteConversation(ctx context.Context, conversationID string) error
	// Health checks the service's health endpoint.
	Health(ctx context.Context) (*HealthResponse, error)
}

// HTTPClient implements Client over the service's HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient instantiates an agent client from configuration.
func NewClient(config *configuration.AgentConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(config.URL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeout) * time.Second,
		},
	}
}

// Invoke implements Client.
func (c *HTTPClient) Invoke(ctx context.Context, agentName, message, conversationID string) (*ChatResponse, error) {
	body, err := json.Marshal(&ChatRequest{
		AgentName:      agentName,
		Message:        message,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling chat request")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(apiKeyHeader, c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "sending chat request")
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("agent service returned %d: %s", response.StatusCode, string(responseBody))
	}

	chatResponse := &ChatResponse{}
	if err := json.Unmarshal(responseBody, chatResponse); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling chat response %q", string(responseBody))
	}
	return chatResponse, nil
}

// DeleteConversation implements Client.
func (c *HTTPClient) DeleteConversation(ctx context.Context, conversationID string) error {
	url := fmt.Sprintf("%s/conversations/%s", c.baseURL, conversationID)
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	request.Header.Set(apiKeyHeader, c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Wrap(err, "sending delete request")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		responseBody, _ := io.ReadAll(response.Body)
		return errors.Errorf("agent service returned %d: %s", response.StatusCode, string(responseBody))
	}
	return nil
}

// Health implements Client.
func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "sending health request")
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("agent service returned %d: %s", response.StatusCode, string(responseBody))
	}

	healthResponse := &HealthResponse{}
	if err := json.Unmarshal(responseBody, healthResponse); err != nil {
		return nil, errors.Wrap(err, "unmarshaling health response")
	}
	return healthResponse, nil
}
