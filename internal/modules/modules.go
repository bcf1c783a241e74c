// Package modules holds the modules and routes whiteboard registers on every
// page: partial, relay and link, and routes that render a template into the
// root element.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/whiteboard/internal/app"
	"github.com/conneroisu/whiteboard/internal/history"
)

// Service names.
const (
	TemplatesService = "templates"
	NotifierService  = "notifier"
)

// Message names.
const (
	MessageNavigate = "navigate"
	MessageRoute    = "route"
)

// Loader returns the markup of a named template.
type Loader interface {
	Load(name string) (string, error)
}

// Notifier forwards a broadcast out of the page, to the browser in a dev
// server session.
type Notifier interface {
	Notify(name string, data any) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(name string, data any) error

func (f NotifierFunc) Notify(name string, data any) error {
	return f(name, data)
}

// TitleSetter is implemented by hosts whose document title can change.
type TitleSetter interface {
	SetTitle(title string)
}

// FileLoader loads templates from a directory.
type FileLoader struct {
	Dir string
}

func (l FileLoader) Load(name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("template %q is outside %s", name, l.Dir)
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, clean))
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	return string(data), nil
}

// MapLoader serves templates from memory.
type MapLoader map[string]string

func (m MapLoader) Load(name string) (string, error) {
	markup, ok := m[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	return markup, nil
}

// Register adds the templates and notifier services and the built-in modules.
// notifier may be nil; relayed messages are then dropped.
func Register(a *app.Application, loader Loader, notifier Notifier) {
	a.AddService(TemplatesService, func(*app.Application) (any, error) {
		return loader, nil
	})
	if notifier == nil {
		notifier = NotifierFunc(func(string, any) error { return nil })
	}
	a.AddService(NotifierService, func(*app.Application) (any, error) {
		return notifier, nil
	})

	a.AddModule("partial", NewPartial)
	a.AddModule("relay", NewRelay)
	a.AddModule("link", NewLink)
}

// Route renders Template into the application's root element when Matcher
// matches, and sets the document title when Title is not empty.
type Route struct {
	Matcher  history.Matcher
	Template string
	Title    string
}

// AddRoutes registers routes in order, so a later route takes priority over
// an earlier one matching the same fragment.
func AddRoutes(a *app.Application, routes []Route) {
	for _, r := range routes {
		a.AddRoute(r.Matcher, TemplateRoute(r.Template, r.Title))
	}
}

// TemplateRoute returns a route factory rendering template into the root
// element. Modules in the old content are stopped and modules in the new
// content started. After rendering, a route message is broadcast with the
// fragment.
func TemplateRoute(template, title string) app.RouteFactory {
	return func(a *app.Application) history.Handler {
		return func(fragment string) error {
			loader, err := loaderOf(a.GetService)
			if err != nil {
				return err
			}
			markup, err := loader.Load(template)
			if err != nil {
				return err
			}

			root := a.Element()
			if root == nil {
				root = a.Document().Body()
			}
			if err := a.DOM().SetHTML(root, markup); err != nil {
				return err
			}

			if title != "" {
				if ts, ok := a.Router().Host().(TitleSetter); ok {
					ts.SetTitle(title)
				}
			}

			return a.Broadcast(MessageRoute, fragment)
		}
	}
}

func loaderOf(get func(string) (any, error)) (Loader, error) {
	svc, err := get(TemplatesService)
	if err != nil {
		return nil, err
	}
	loader, ok := svc.(Loader)
	if !ok {
		return nil, fmt.Errorf("service %q is %T, not a template loader", TemplatesService, svc)
	}
	return loader, nil
}

func notifierOf(get func(string) (any, error)) (Notifier, error) {
	svc, err := get(NotifierService)
	if err != nil {
		return nil, err
	}
	n, ok := svc.(Notifier)
	if !ok {
		return nil, fmt.Errorf("service %q is %T, not a notifier", NotifierService, svc)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
