package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

// Renderer renders assistant markdown for the thread viewport. Rendered
// output is cached per message id; messages are immutable so entries never
// invalidate, only a width change resets the cache.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
	cache   map[string]string
}

// NewRenderer creates a renderer wrapping at the given width.
func NewRenderer(width int) (*Renderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating term renderer")
	}
	return &Renderer{glamour: gr, width: width, cache: map[string]string{}}, nil
}

// Width returns the wrap width the renderer was built with.
func (r *Renderer) Width() int {
	return r.width
}

// Render renders markdown content. id keys the cache; pass "" to skip
// caching. Falls back to the raw content if glamour fails.
func (r *Renderer) Render(id, content string) string {
	if id != "" {
		if rendered, ok := r.cache[id]; ok {
			return rendered
		}
	}

	rendered, err := r.glamour.Render(content)
	if err != nil {
		rendered = content
	}
	rendered = strings.Trim(rendered, "\n")

	if id != "" {
		r.cache[id] = rendered
	}
	return rendered
}
