package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	historyFileName = "parley_input_history.json"
	maxEntries      = 500
)

// History holds past message inputs for alt+p/alt+n navigation, persisted
// across sessions.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int    // position while navigating, -1 means new input
	draft   string // input saved when navigation starts
	path    string
}

// New loads the persisted history, if any.
func New() *History {
	h := &History{index: -1, path: filepath.Join(os.TempDir(), historyFileName)}
	if bytes, err := os.ReadFile(h.path); err == nil {
		_ = json.Unmarshal(bytes, &h.entries)
	}
	if len(h.entries) > maxEntries {
		h.entries = h.entries[len(h.entries)-maxEntries:]
	}
	return h
}

// Add records a sent input and resets navigation. Persistence failures are
// silent; history is best-effort.
func (h *History) Add(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}

	h.mu.Lock()
	h.index = -1
	h.draft = ""
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		h.mu.Unlock()
		return
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > maxEntries {
		h.entries = h.entries[len(h.entries)-maxEntries:]
	}
	bytes, err := json.Marshal(h.entries)
	path := h.path
	h.mu.Unlock()

	if err == nil {
		_ = os.WriteFile(path, bytes, 0644)
	}
}

// Previous steps back in history. The current input is stashed on the first
// step so Next can restore it.
func (h *History) Previous(currentInput string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.index == -1:
		h.draft = currentInput
		h.index = len(h.entries) - 1
	case h.index > 0:
		h.index--
	default:
		return h.entries[0], false
	}
	return h.entries[h.index], true
}

// Next steps forward in history, restoring the stashed input past the newest
// entry.
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == -1 {
		return "", false
	}
	h.index++
	if h.index >= len(h.entries) {
		h.index = -1
		return h.draft, true
	}
	return h.entries[h.index], true
}

// Reset abandons navigation; call when the user edits the input.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.index = -1
	h.draft = ""
}
