package server

import (
	"net/url"
	"sort"
)

// PageHost is the browser side of a session as the router sees it. History
// changes are queued as frames for the session to send; back and forward
// navigation arrives through PopState.
type PageHost struct {
	path      string
	title     string
	listeners map[int]func()
	nextID    int
	emit      func(Frame)
}

// NewPageHost creates a host at path. emit receives every frame the host
// produces.
func NewPageHost(path, title string, emit func(Frame)) *PageHost {
	if emit == nil {
		emit = func(Frame) {}
	}
	return &PageHost{
		path:      path,
		title:     title,
		listeners: make(map[int]func()),
		emit:      emit,
	}
}

func (h *PageHost) Pathname() string {
	return h.path
}

func (h *PageHost) Title() string {
	return h.title
}

// SetTitle changes the document title in the browser.
func (h *PageHost) SetTitle(title string) {
	if title == h.title {
		return
	}
	h.title = title
	h.emit(Frame{Type: FrameTitle, Title: title})
}

func (h *PageHost) PushState(_ any, title, u string) {
	h.path = pathOf(u)
	h.emit(Frame{Type: FramePushState, URL: u, Title: title})
}

func (h *PageHost) ReplaceState(_ any, title, u string) {
	h.path = pathOf(u)
	h.emit(Frame{Type: FrameReplaceState, URL: u, Title: title})
}

func (h *PageHost) AddPopStateListener(fn func()) func() {
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() { delete(h.listeners, id) }
}

// Locate sets the location without notifying anyone, as when the page
// first loads.
func (h *PageHost) Locate(path, title string) {
	h.path = pathOf(path)
	if title != "" {
		h.title = title
	}
}

// PopState records that the browser moved to path through its history and
// notifies listeners in registration order.
func (h *PageHost) PopState(path string) {
	h.path = pathOf(path)

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
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
