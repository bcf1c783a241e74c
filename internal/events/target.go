// Package events provides an ordered publish/subscribe primitive that any
// component can embed to emit named events.
//
// Listeners are registered by pointer so they can be removed later by the same
// reference. A listener registered with One is wrapped in a proxy that keeps a
// back-pointer to the original, which is why Off accepts either.
package events

// All is the wildcard event type. Its listeners run after the listeners for
// the fired type on every Fire.
const All = "all"

// Event is passed to every listener.
type Event struct {
	Type string
	Data any
}

// Listener wraps a handler function. Identity is the pointer.
type Listener struct {
	fn func(Event) error

	// original is set on proxies created by One.
	original *Listener
}

// NewListener creates a listener for fn.
func NewListener(fn func(Event) error) *Listener {
	return &Listener{fn: fn}
}

// Handle invokes the listener directly.
func (l *Listener) Handle(ev Event) error {
	if l == nil || l.fn == nil {
		return nil
	}
	return l.fn(ev)
}

// Publisher is the capability embedded by anything that emits events.
type Publisher interface {
	On(eventType string, l *Listener)
	Off(eventType string, l *Listener)
	One(eventType string, l *Listener)
	Fire(eventType string, data any) error
}

type registration struct {
	listener *Listener
	removed  bool
}

// Target implements Publisher. The zero value is ready to use. Target is not
// safe for concurrent use; callers serialize access the same way they
// serialize everything else on a page session.
type Target struct {
	handlers map[string][]*registration
}

var _ Publisher = (*Target)(nil)

// On appends l to the listeners for eventType. Duplicates are kept.
func (t *Target) On(eventType string, l *Listener) {
	if l == nil {
		return
	}
	if t.handlers == nil {
		t.handlers = make(map[string][]*registration)
	}
	t.handlers[eventType] = append(t.handlers[eventType], &registration{listener: l})
}

// Off removes the first listener for eventType that is l, or that is a One
// proxy wrapping l. A nil l clears every listener for eventType.
func (t *Target) Off(eventType string, l *Listener) {
	regs, ok := t.handlers[eventType]
	if !ok {
		return
	}

	if l == nil {
		for _, r := range regs {
			r.removed = true
		}
		t.handlers[eventType] = regs[:0:0]
		return
	}

	for i, r := range regs {
		if r.listener == l || r.listener.original == l {
			r.removed = true
			t.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// One registers l so that it runs at most once. The proxy unregisters itself
// before calling l, so a Fire of the same type from inside l does not reach it.
func (t *Target) One(eventType string, l *Listener) {
	if l == nil {
		return
	}
	proxy := &Listener{original: l}
	proxy.fn = func(ev Event) error {
		t.Off(eventType, proxy)
		return l.Handle(ev)
	}
	t.On(eventType, proxy)
}

// Fire synchronously invokes the listeners for eventType in registration
// order, then the listeners for All. The first listener error stops dispatch
// and is returned unchanged.
func (t *Target) Fire(eventType string, data any) error {
	ev := Event{Type: eventType, Data: data}

	typed := snapshot(t.handlers[eventType])
	var wildcard []*registration
	if eventType != All {
		wildcard = snapshot(t.handlers[All])
	}

	for _, regs := range [][]*registration{typed, wildcard} {
		for _, r := range regs {
			if r.removed {
				continue
			}
			if err := r.listener.Handle(ev); err != nil {
				return err
			}
		}
	}

	return nil
}

// Count returns the number of listeners registered for eventType.
func (t *Target) Count(eventType string) int {
	return len(t.handlers[eventType])
}

func snapshot(regs []*registration) []*registration {
	if len(regs) == 0 {
		return nil
	}
	out := make([]*registration, len(regs))
	copy(out, regs)
	return out
}
