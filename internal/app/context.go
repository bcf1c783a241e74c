package app

import (
	"golang.org/x/net/html"

	"github.com/conneroisu/whiteboard/internal/dom"
	"github.com/conneroisu/whiteboard/internal/history"
)

// Context is what a module sees of the application: broadcasting, service
// lookup, navigation, and document queries limited to its own element.
type Context struct {
	app     *Application
	element *html.Node
}

func newContext(app *Application, element *html.Node) *Context {
	return &Context{app: app, element: element}
}

// Broadcast sends a message to every subscribed module.
func (c *Context) Broadcast(name string, data any) error {
	return c.app.Broadcast(name, data)
}

// GetService returns the named service, or nil if none is registered.
func (c *Context) GetService(name string) (any, error) {
	return c.app.GetService(name)
}

// DOM returns the document service.
func (c *Context) DOM() *dom.Service {
	return c.app.DOM()
}

// Navigate asks the router to change the URL.
func (c *Context) Navigate(fragment string, opts history.NavigateOptions) (bool, error) {
	return c.app.Navigate(fragment, opts)
}

// Fragment returns the router's current fragment.
func (c *Context) Fragment() string {
	return c.app.Router().Fragment()
}

// GetElement returns the module's element.
func (c *Context) GetElement() *html.Node {
	return c.element
}

// ID returns the id of the module's element.
func (c *Context) ID() string {
	return c.app.DOM().ID(c.element)
}

// Data reads a data attribute of the module's element.
func (c *Context) Data(property string) string {
	return c.app.DOM().GetData(c.element, property)
}

// Query returns the first element inside the module's element that matches
// selector.
func (c *Context) Query(selector string) *html.Node {
	return c.app.DOM().Query(selector, c.element)
}

// QueryAll returns every element inside the module's element that matches
// selector.
func (c *Context) QueryAll(selector string) []*html.Node {
	return c.app.DOM().QueryAll(selector, c.element)
}
