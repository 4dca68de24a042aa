package store

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

	"github.com/pkg/errors"
)

// REST is a client for a PostgREST-style API exposing the conversations and
// messages collections. It is stateless between calls and safe for use as a
// process-wide singleton.
type REST struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewREST instantiates a REST store client.
func NewREST(baseURL, apiKey string) *REST {
	return &REST{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListConversations implements Store.
func (r *REST) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var conversations []*Conversation
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "updated_at.desc")
	if err := r.do(ctx, http.MethodGet, "conversations", query, nil, false, &conversations); err != nil {
		return nil, errors.Wrap(err, "listing conversations")
	}
	return conversations, nil
}

// GetConversation implements Store.
func (r *REST) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conversations []*Conversation
	query := url.Values{}
	query.Set("select", "*")
	query.Set("id", "eq."+id)
	if err := r.do(ctx, http.MethodGet, "conversations", query, nil, false, &conversations); err != nil {
		return nil, errors.Wrapf(err, "getting conversation %s", id)
	}
	if len(conversations) == 0 {
		return nil, ErrNotFound
	}
	return conversations[0], nil
}

// CreateConversation implements Store.
func (r *REST) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	body := []map[string]string{{"title": title}}
	var conversations []*Conversation
	if err := r.do(ctx, http.MethodPost, "conversations", nil, body, true, &conversations); err != nil {
		return nil, errors.Wrap(err, "creating conversation")
	}
	if len(conversations) == 0 {
		return nil, errors.New("creating conversation: empty response")
	}
	return conversations[0], nil
}

// DeleteConversation implements Store. The API enforces no referential
// cascade, so the messages are deleted first, then the conversation row.
func (r *REST) DeleteConversation(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("conversation_id", "eq."+id)
	if err := r.do(ctx, http.MethodDelete, "messages", query, nil, false, nil); err != nil {
		return errors.Wrapf(err, "deleting messages of conversation %s", id)
	}

	query = url.Values{}
	query.Set("id", "eq."+id)
	if err := r.do(ctx, http.MethodDelete, "conversations", query, nil, false, nil); err != nil {
		return errors.Wrapf(err, "deleting conversation %s", id)
	}
	return nil
}

// ListMessages implements Store.
func (r *REST) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	var messages []*Message
	query := url.Values{}
	query.Set("select", "*")
	query.Set("conversation_id", "eq."+conversationID)
	query.Set("order", "created_at.asc")
	if err := r.do(ctx, http.MethodGet, "messages", query, nil, false, &messages); err != nil {
		return nil, errors.Wrapf(err, "listing messages of conversation %s", conversationID)
	}
	return messages, nil
}

// AddMessage implements Store. The parent conversation's updated_at is bumped
// in a follow-up request; the two writes are not transactional.
func (r *REST) AddMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	body := []map[string]string{{
		"conversation_id": conversationID,
		"role":            string(role),
		"content":         content,
	}}
	var messages []*Message
	if err := r.do(ctx, http.MethodPost, "messages", nil, body, true, &messages); err != nil {
		return nil, errors.Wrapf(err, "adding message to conversation %s", conversationID)
	}
	if len(messages) == 0 {
		return nil, errors.New("adding message: empty response")
	}

	query := url.Values{}
	query.Set("id", "eq."+conversationID)
	bump := map[string]string{"updated_at": time.Now().UTC().Format(time.RFC3339Nano)}
	if err := r.do(ctx, http.MethodPatch, "conversations", query, bump, false, nil); err != nil {
		return nil, errors.Wrapf(err, "bumping conversation %s", conversationID)
	}
	return messages[0], nil
}

// Close implements Store. The REST client holds no resources.
func (r *REST) Close() error { return nil }

// do issues a request against a collection and decodes the response into out
// when out is non-nil.
func (r *REST) do(ctx context.Context, method, collection string, query url.Values, body any, returnRepresentation bool, out any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", r.baseURL, collection)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshaling body")
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	request.Header.Set("apikey", r.apiKey)
	request.Header.Set("Authorization", "Bearer "+r.apiKey)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if returnRepresentation {
		request.Header.Set("Prefer", "return=representation")
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return errors.Errorf("remote store returned %d: %s", response.StatusCode, string(responseBody))
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return errors.Wrap(err, "unmarshaling response")
		}
	}
	return nil
}
