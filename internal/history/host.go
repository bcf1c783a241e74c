package history

import (
	"sort"
	"strings"
)

// Host is the browser surface the router drives: the current location, the
// document title, the session history primitives and back/forward
// notification.
type Host interface {
	// Pathname returns the path of the current location.
	Pathname() string
	// Title returns the current document title.
	Title() string
	// PushState adds a session history entry for url.
	PushState(state any, title, url string)
	// ReplaceState rewrites the current session history entry.
	ReplaceState(state any, title, url string)
	// AddPopStateListener registers fn for back/forward navigation and returns
	// a function that removes it.
	AddPopStateListener(fn func()) (remove func())
}

// Entry is one session history entry.
type Entry struct {
	State any
	Title string
	URL   string
}

// MemoryHost is an in-process session history. The zero value is not usable;
// create one with NewMemoryHost.
type MemoryHost struct {
	entries   []Entry
	index     int
	title     string
	listeners map[int]func()
	nextID    int
}

var _ Host = (*MemoryHost)(nil)

// NewMemoryHost creates a history with a single entry at path.
func NewMemoryHost(path, title string) *MemoryHost {
	if path == "" {
		path = "/"
	}
	return &MemoryHost{
		entries:   []Entry{{Title: title, URL: path}},
		title:     title,
		listeners: make(map[int]func()),
	}
}

// Pathname returns the path of the current entry with any query or hash
// removed.
func (h *MemoryHost) Pathname() string {
	return pathOf(h.entries[h.index].URL)
}

// Title returns the document title.
func (h *MemoryHost) Title() string {
	return h.title
}

// SetTitle changes the document title.
func (h *MemoryHost) SetTitle(title string) {
	h.title = title
}

// PushState drops any forward entries and appends a new current entry.
func (h *MemoryHost) PushState(state any, title, url string) {
	h.entries = append(h.entries[:h.index+1], Entry{State: state, Title: title, URL: url})
	h.index = len(h.entries) - 1
}

// ReplaceState rewrites the current entry.
func (h *MemoryHost) ReplaceState(state any, title, url string) {
	h.entries[h.index] = Entry{State: state, Title: title, URL: url}
}

// AddPopStateListener registers fn for Back, Forward and Go.
func (h *MemoryHost) AddPopStateListener(fn func()) func() {
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		delete(h.listeners, id)
	}
}

// Back moves one entry back. It reports false at the first entry.
func (h *MemoryHost) Back() bool {
	return h.Go(-1)
}

// Forward moves one entry forward. It reports false at the last entry.
func (h *MemoryHost) Forward() bool {
	return h.Go(1)
}

// Go moves delta entries and notifies pop-state listeners. Out of range or
// zero deltas do nothing and report false.
func (h *MemoryHost) Go(delta int) bool {
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		return false
	}
	h.index = target

	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := h.listeners[id]; ok {
			fn()
		}
	}
	return true
}

// Entries returns a copy of the session history.
func (h *MemoryHost) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *MemoryHost) Len() int {
	return len(h.entries)
}

// Index returns the position of the current entry.
func (h *MemoryHost) Index() int {
	return h.index
}

// Listeners returns the number of registered pop-state listeners.
func (h *MemoryHost) Listeners() int {
	return len(h.listeners)
}

// pathOf strips the query and hash from a URL path.
func pathOf(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}
