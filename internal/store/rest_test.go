package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	prefer string
	body   map[string]string
}

type fakePostgREST struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func newFakePostgREST(t *testing.T, handler http.HandlerFunc) (*fakePostgREST, *REST) {
	t.Helper()
	f := &fakePostgREST{handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("apikey"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		recorded := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			prefer: r.Header.Get("Prefer"),
		}
		if raw, err := io.ReadAll(r.Body); err == nil && len(raw) > 0 {
			var batch []map[string]string
			var single map[string]string
			if err := json.Unmarshal(raw, &batch); err == nil && len(batch) > 0 {
				recorded.body = batch[0]
			} else if err := json.Unmarshal(raw, &single); err == nil {
				recorded.body = single
			}
		}
		f.mu.Lock()
		f.requests = append(f.requests, recorded)
		f.mu.Unlock()

		f.handler(w, r)
	}))
	t.Cleanup(server.Close)
	return f, NewREST(server.URL, "secret")
}

func (f *fakePostgREST) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	requests := make([]recordedRequest, len(f.requests))
	copy(requests, f.requests)
	return requests
}

func TestRESTListConversations(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"id": "c2", "title": "newer", "created_at": "2026-08-29T10:00:00Z", "updated_at": "2026-08-30T09:00:00Z"},
			{"id": "c1", "title": "older", "created_at": "2026-08-28T10:00:00Z", "updated_at": "2026-08-28T10:00:00Z"}
		]`))
	})

	conversations, err := r.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	require.Equal(t, "c2", conversations[0].ID)
	require.Equal(t, "newer", conversations[0].Title)

	requests := f.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, http.MethodGet, requests[0].method)
	require.Equal(t, "/rest/v1/conversations", requests[0].path)
	require.Contains(t, requests[0].query, "order=updated_at.desc")
}

func TestRESTGetConversationNotFound(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := r.GetConversation(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	requests := f.recorded()
	require.Len(t, requests, 1)
	require.Contains(t, requests[0].query, "id=eq.missing")
}

func TestRESTCreateConversation(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id": "c1", "title": "a title", "created_at": "2026-08-30T10:00:00Z", "updated_at": "2026-08-30T10:00:00Z"}]`))
	})

	conversation, err := r.CreateConversation(context.Background(), "a title")
	require.NoError(t, err)
	require.Equal(t, "c1", conversation.ID)

	requests := f.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, http.MethodPost, requests[0].method)
	require.Equal(t, "return=representation", requests[0].prefer)
	require.Equal(t, "a title", requests[0].body["title"])
}

func TestRESTDeleteConversationRemovesMessagesFirst(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, r.DeleteConversation(context.Background(), "c1"))

	requests := f.recorded()
	require.Len(t, requests, 2)
	require.Equal(t, http.MethodDelete, requests[0].method)
	require.Equal(t, "/rest/v1/messages", requests[0].path)
	require.Contains(t, requests[0].query, "conversation_id=eq.c1")
	require.Equal(t, http.MethodDelete, requests[1].method)
	require.Equal(t, "/rest/v1/conversations", requests[1].path)
	require.Contains(t, requests[1].query, "id=eq.c1")
}

func TestRESTListMessages(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"id": "m1", "conversation_id": "c1", "role": "user", "content": "hello", "created_at": "2026-08-30T10:00:00Z"},
			{"id": "m2", "conversation_id": "c1", "role": "assistant", "content": "hi", "created_at": "2026-08-30T10:00:05Z"}
		]`))
	})

	messages, err := r.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, RoleUser, messages[0].Role)
	require.Equal(t, RoleAssistant, messages[1].Role)

	requests := f.recorded()
	require.Contains(t, requests[0].query, "order=created_at.asc")
}

func TestRESTAddMessageBumpsConversation(t *testing.T) {
	t.Parallel()
	f, r := newFakePostgREST(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[{"id": "m1", "conversation_id": "c1", "role": "user", "content": "hello", "created_at": "2026-08-30T10:00:00Z"}]`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	message, err := r.AddMessage(context.Background(), "c1", RoleUser, "hello")
	require.NoError(t, err)
	require.Equal(t, "m1", message.ID)

	requests := f.recorded()
	require.Len(t, requests, 2)
	require.Equal(t, http.MethodPost, requests[0].method)
	require.Equal(t, "/rest/v1/messages", requests[0].path)
	require.Equal(t, "hello", requests[0].body["content"])
	require.Equal(t, http.MethodPatch, requests[1].method)
	require.Equal(t, "/rest/v1/conversations", requests[1].path)
	require.Contains(t, requests[1].query, "id=eq.c1")
	require.NotEmpty(t, requests[1].body["updated_at"])
}

func TestRESTErrorStatusSurfaces(t *testing.T) {
	t.Parallel()
	_, r := newFakePostgREST(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "bad key"}`))
	})

	_, err := r.ListConversations(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
