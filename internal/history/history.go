// Package history is the client-side router. It turns the host location into a
// normalized fragment, dispatches fragments to the most recently registered
// matching route, and records navigation in the host's session history.
//
// History has two states. It starts Stopped; Start moves it to Started and
// subscribes to back/forward notification, Stop unsubscribes and moves it
// back. Start and Stop are no-ops in the state they lead to.
package history

import (
	"context"
	"strings"
	"time"
	"unicode"

	wberrors "github.com/conneroisu/whiteboard/internal/errors"
	"github.com/conneroisu/whiteboard/internal/events"
	"github.com/conneroisu/whiteboard/internal/logging"
)

// Event types fired on History.
const (
	EventRoute    = "route"
	EventNavigate = "navigate"
)

// Handler runs when its route matches. The fragment is the normalized
// fragment that matched.
type Handler func(fragment string) error

// Options configure Start.
type Options struct {
	// Root is the path the application is served under. It is normalized to
	// begin and end with a single slash. Empty keeps the current root.
	Root string
	// Silent skips the initial dispatch.
	Silent bool
}

// NavigateOptions configure Navigate.
type NavigateOptions struct {
	// Trigger dispatches the new fragment after the URL changes.
	Trigger bool
	// Replace rewrites the current history entry instead of adding one.
	Replace bool
}

// RouteEvent is the data of EventRoute.
type RouteEvent struct {
	Fragment string
	Duration time.Duration
}

// NavigateEvent is the data of EventNavigate.
type NavigateEvent struct {
	Fragment string
	URL      string
	Replace  bool
}

type route struct {
	matcher Matcher
	handler Handler
}

// Option configures a History.
type Option func(*History)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *History) {
		h.logger = logger.WithComponent("history")
	}
}

// WithErrorHandler receives errors from dispatches started by back/forward
// navigation, which have no caller to return them to. The default logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(h *History) {
		h.onError = fn
	}
}

// History is the router state machine. It is not safe for concurrent use.
type History struct {
	events.Target

	host    Host
	logger  logging.Logger
	onError func(error)

	started   bool
	root      string
	fragment  string
	routes    []route
	removePop func()
}

// New creates a stopped router driving host.
func New(host Host, opts ...Option) *History {
	h := &History{
		host:   host,
		logger: logging.NewNop(),
		root:   "/",
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.onError == nil {
		h.onError = func(err error) {
			h.logger.Error(context.Background(), err, "dispatch after history navigation failed")
		}
	}
	return h
}

// Started reports whether the router is started.
func (h *History) Started() bool {
	return h.started
}

// Root returns the normalized root.
func (h *History) Root() string {
	return h.root
}

// Fragment returns the last fragment loaded or navigated to.
func (h *History) Fragment() string {
	return h.fragment
}

// Host returns the host the router drives.
func (h *History) Host() Host {
	return h.host
}

// RouteCount returns the number of registered routes.
func (h *History) RouteCount() int {
	return len(h.routes)
}

// Start begins handling navigation. It returns whether the initial dispatch
// matched a route; a silent start returns false.
func (h *History) Start(opts Options) (bool, error) {
	if h.started {
		return false, nil
	}
	h.started = true

	if opts.Root != "" {
		h.root = opts.Root
	}
	h.root = NormalizeRoot(h.root)
	h.fragment = h.LocationFragment()
	h.removePop = h.host.AddPopStateListener(h.handlePopState)

	h.logger.Debug(context.Background(), "router started", "root", h.root, "fragment", h.fragment, "silent", opts.Silent)

	if opts.Silent {
		return false, nil
	}
	return h.LoadURL()
}

// Stop stops handling navigation.
func (h *History) Stop() {
	if !h.started {
		return
	}
	if h.removePop != nil {
		h.removePop()
		h.removePop = nil
	}
	h.started = false

	h.logger.Debug(context.Background(), "router stopped")
}

// Route adds a route. Routes added later are tried first.
func (h *History) Route(m Matcher, handler Handler) {
	h.routes = append([]route{{matcher: m, handler: handler}}, h.routes...)
}

// LocationFragment derives the fragment from the host location: the root
// prefix is stripped, then the result is normalized.
func (h *History) LocationFragment() string {
	p := h.host.Pathname()
	root := strings.TrimSuffix(h.root, "/")
	if strings.HasPrefix(p, root) {
		p = p[len(root):]
	}
	return NormalizeFragment(p)
}

// CheckURL dispatches the location fragment if it differs from the current
// one. It returns false when nothing changed.
func (h *History) CheckURL() (bool, error) {
	if h.LocationFragment() == h.fragment {
		return false, nil
	}
	return h.LoadURL()
}

// LoadURL makes fragment current and runs the first matching route. With no
// argument the fragment comes from the host location. It returns whether a
// route matched, and the handler's error if it failed.
func (h *History) LoadURL(fragment ...string) (bool, error) {
	if len(fragment) > 0 {
		h.fragment = NormalizeFragment(fragment[0])
	} else {
		h.fragment = h.LocationFragment()
	}
	current := h.fragment

	for _, r := range h.routes {
		if !r.matcher.Match(current) {
			continue
		}

		start := time.Now()
		if err := r.handler(current); err != nil {
			return true, wberrors.WrapRoute(err, current)
		}
		return true, h.Fire(EventRoute, RouteEvent{Fragment: current, Duration: time.Since(start)})
	}

	h.logger.Debug(context.Background(), "no route matched", "fragment", current)
	return false, nil
}

// Navigate changes the URL to root+fragment. It does nothing and returns
// false when the router is stopped or the fragment is already current.
func (h *History) Navigate(fragment string, opts NavigateOptions) (bool, error) {
	if !h.started {
		return false, nil
	}

	fragment = NormalizeFragment(fragment)
	if fragment == h.fragment {
		return false, nil
	}
	h.fragment = fragment

	url := h.root + fragment
	if opts.Replace {
		h.host.ReplaceState(nil, h.host.Title(), url)
	} else {
		h.host.PushState(nil, h.host.Title(), url)
	}

	if err := h.Fire(EventNavigate, NavigateEvent{Fragment: fragment, URL: url, Replace: opts.Replace}); err != nil {
		return true, err
	}

	if opts.Trigger {
		if _, err := h.LoadURL(fragment); err != nil {
			return true, err
		}
	}
	return true, nil
}

// NavigateTrigger navigates and dispatches.
func (h *History) NavigateTrigger(fragment string) (bool, error) {
	return h.Navigate(fragment, NavigateOptions{Trigger: true})
}

func (h *History) handlePopState() {
	if _, err := h.CheckURL(); err != nil {
		h.onError(err)
	}
}

// NormalizeFragment strips leading '#' and '/' characters and trailing
// whitespace. It is idempotent.
func NormalizeFragment(s string) string {
	return strings.TrimRightFunc(strings.TrimLeft(s, "#/"), unicode.IsSpace)
}

// NormalizeRoot makes root begin and end with exactly one slash.
func NormalizeRoot(root string) string {
	trimmed := strings.Trim(root, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}
