// Package conversation implements the synchronizer between the locally
// displayed chat state and the remote store. The store is the source of
// truth; the state held here is a read-through mirror, never authoritative.
package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/solweir/parley/internal/agent"
	"github.com/solweir/parley/internal/store"
)

// Synchronizer orchestrates an exchange (persist user message, invoke agent,
// persist assistant message, refresh the list) and reconciles out-of-band
// updates by polling.
//
// Methods are safe for concurrent use, but nothing here prevents two
// exchanges from being in flight at once; the single-exchange guarantee
// lives in the view layer, which ignores input while Pending is true.
type Synchronizer struct {
	store store.Store
	agent agent.Client
	log   *slog.Logger

	mu            sync.Mutex
	conversations []*store.Conversation
	messages      []*store.Message
	activeID      string
	pending       bool
	onChange      func()
}

// NewSynchronizer instantiates a synchronizer.
func NewSynchronizer(s store.Store, a agent.Client, log *slog.Logger) *Synchronizer {
	return &Synchronizer{store: s, agent: a, log: log}
}

// SetOnChange registers a hook invoked after any local state mutation, so a
// view can re-render from a fresh snapshot. The hook runs outside the lock
// and may be invoked from any goroutine.
func (s *Synchronizer) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Conversations returns the mirrored conversation list, most recently
// updated first.
func (s *Synchronizer) Conversations() []*store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversations := make([]*store.Conversation, len(s.conversations))
	copy(conversations, s.conversations)
	return conversations
}

// Messages returns the mirrored messages of the active conversation.
func (s *Synchronizer) Messages() []*store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]*store.Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// ActiveConversation returns the active conversation id, empty when none.
func (s *Synchronizer) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Pending reports whether an outbound exchange is in flight.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// RefreshConversations replaces the mirrored conversation list with a fresh
// fetch. On failure the list falls back to empty rather than stale data.
func (s *Synchronizer) RefreshConversations(ctx context.Context) error {
	conversations, err := s.store.ListConversations(ctx)
	if err != nil {
		s.log.Error("refreshing conversations", "error", err)
		s.mu.Lock()
		s.conversations = nil
		s.mu.Unlock()
		s.notify()
		return errors.Wrap(err, "refreshing conversations")
	}
	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	s.notify()
	return nil
}

// SwitchConversation makes id the active conversation, replacing the
// mirrored messages with a fresh fetch. A conversation that no longer exists
// surfaces as store.ErrNotFound, never as an empty thread.
func (s *Synchronizer) SwitchConversation(ctx context.Context, id string) (*store.Conversation, error) {
	conversation, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "listing messages of conversation %s", id)
	}

	s.mu.Lock()
	s.activeID = id
	s.messages = messages
	s.mu.Unlock()
	s.notify()
	return conversation, nil
}

// Reset clears the active conversation, for the new-conversation view.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.activeID = ""
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// SendUserMessage runs one exchange against the active conversation,
// strictly in sequence: persist the user message, invoke the agent, persist
// the assistant message, refresh the conversation list.
//
// A failure at any step aborts the remaining steps and clears pending. A
// user message already persisted is not rolled back; the dangling turn is
// left for polling or a later visit to reconcile.
func (s *Synchronizer) SendUserMessage(ctx context.Context, agentName, text, conversationID string) error {
	text = trimText(text)
	if text == "" {
		return errors.New("empty message")
	}

	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	userMessage, err := s.store.AddMessage(ctx, conversationID, store.RoleUser, text)
	if err != nil {
		s.log.Error("persisting user message", "conversation_id", conversationID, "error", err)
		return errors.Wrap(err, "persisting user message")
	}
	s.appendLocal(conversationID, userMessage)

	chatResponse, err := s.agent.Invoke(ctx, agentName, text, conversationID)
	if err != nil {
		s.log.Error("invoking agent", "agent", agentName, "conversation_id", conversationID, "error", err)
		return errors.Wrap(err, "invoking agent")
	}

	assistantMessage, err := s.store.AddMessage(ctx, conversationID, store.RoleAssistant, chatResponse.Response)
	if err != nil {
		s.log.Error("persisting assistant message", "conversation_id", conversationID, "error", err)
		return errors.Wrap(err, "persisting assistant message")
	}
	s.appendLocal(conversationID, assistantMessage)

	return s.RefreshConversations(ctx)
}

// StartConversation creates a conversation titled after the first message,
// persists the user message, and fires the agent invocation in the
// background without waiting for it: the caller navigates to the new
// conversation immediately and polling picks up the assistant reply.
func (s *Synchronizer) StartConversation(ctx context.Context, agentName, text string) (*store.Conversation, error) {
	text = trimText(text)
	if text == "" {
		return nil, errors.New("empty message")
	}

	conversation, err := s.store.CreateConversation(ctx, DeriveTitle(text))
	if err != nil {
		return nil, errors.Wrap(err, "creating conversation")
	}
	if _, err := s.store.AddMessage(ctx, conversation.ID, store.RoleUser, text); err != nil {
		return nil, errors.Wrap(err, "persisting user message")
	}

	// The invocation is not cancellable once issued; if it completes after
	// the user has navigated elsewhere, the reply still lands in the store.
	background := context.WithoutCancel(ctx)
	go func() {
		chatResponse, err := s.agent.Invoke(background, agentName, text, conversation.ID)
		if err != nil {
			s.log.Error("invoking agent for new conversation", "conversation_id", conversation.ID, "error", err)
			return
		}
		if _, err := s.store.AddMessage(background, conversation.ID, store.RoleAssistant, chatResponse.Response); err != nil {
			s.log.Error("persisting assistant message", "conversation_id", conversation.ID, "error", err)
		}
	}()

	return conversation, nil
}

// DeleteConversation requests deletion from the store. The mirrored list
// only drops the entry if the remote delete succeeds; on failure the list is
// re-fetched so local state never diverges from the store. The agent's
// server-side memory is cleared best-effort.
func (s *Synchronizer) DeleteConversation(ctx context.Context, id string) error {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		s.log.Error("deleting conversation", "conversation_id", id, "error", err)
		refreshErr := s.RefreshConversations(ctx)
		if refreshErr != nil {
			s.log.Error("resynchronizing after failed delete", "error", refreshErr)
		}
		return errors.Wrapf(err, "deleting conversation %s", id)
	}

	if err := s.agent.DeleteConversation(ctx, id); err != nil {
		// The store row is gone; a stale agent memory is harmless.
		s.log.Warn("clearing agent conversation memory", "conversation_id", id, "error", err)
	}

	s.mu.Lock()
	kept := s.conversations[:0]
	for _, conversation := range s.conversations {
		if conversation.ID != id {
			kept = append(kept, conversation)
		}
	}
	s.conversations = kept
	if s.activeID == id {
		// No valid local state remains; the caller must navigate away.
		s.activeID = ""
		s.messages = nil
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// ShouldPoll reports whether the active conversation shows a dangling
// unanswered user turn: an odd, non-zero message count whose last message is
// the user's. The alternation heuristic is deliberate; do not generalize it.
func (s *Synchronizer) ShouldPoll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) > 0 &&
		len(s.messages)%2 == 1 &&
		s.messages[len(s.messages)-1].Role == store.RoleUser
}

// PollOnce re-fetches the active conversation's full message set. It reports
// true, replacing the mirrored set, iff the fetch returned more messages
// than previously known. Applying the same update twice is idempotent.
func (s *Synchronizer) PollOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	id := s.activeID
	known := len(s.messages)
	s.mu.Unlock()
	if id == "" {
		return false, nil
	}

	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "polling conversation %s", id)
	}
	if len(messages) <= known {
		return false, nil
	}

	s.mu.Lock()
	// The active conversation may have changed while the fetch was in
	// flight; a stale result must not clobber the new view.
	if s.activeID != id {
		s.mu.Unlock()
		return false, nil
	}
	s.messages = messages
	s.mu.Unlock()
	s.notify()
	return true, nil
}

// appendLocal echoes a persisted message into the mirror, unless the view
// has moved to another conversation in the meantime. A message the mirror
// already holds is skipped: a concurrent poll may have fetched it first.
func (s *Synchronizer) appendLocal(conversationID string, message *store.Message) {
	s.mu.Lock()
	if s.activeID != conversationID {
		s.mu.Unlock()
		return
	}
	for _, existing := range s.messages {
		if existing.ID == message.ID {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	s.notify()
}
