// Package app is the application core: it registers module types and
// services, starts and stops module instances for marked elements, fans
// broadcasts out to subscribed instances, and owns the router.
//
// An Application is built once per page session and is used from a single
// goroutine. Re-entrancy is expected and handled: module code may start or
// stop modules, broadcast, or navigate from inside Init, OnMessage or a route
// handler.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/whiteboard/internal/dom"
	wberrors "github.com/conneroisu/whiteboard/internal/errors"
	"github.com/conneroisu/whiteboard/internal/events"
	"github.com/conneroisu/whiteboard/internal/history"
	"github.com/conneroisu/whiteboard/internal/logging"
	"github.com/conneroisu/whiteboard/internal/services"
)

// Defaults for the module marker convention.
const (
	DefaultModuleSelector  = ".module"
	DefaultModuleAttribute = "module"
	DOMService             = "dom"
)

// Event types fired on Application.
const (
	EventModuleStart = "module:start"
	EventModuleStop  = "module:stop"
	EventBroadcast   = "broadcast"
)

const blankDocument = "<!DOCTYPE html><html><head></head><body></body></html>"

// RouteFactory builds the handler for a route. It is called on every dispatch
// with the application.
type RouteFactory func(a *Application) history.Handler

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(a *Application) { a.logger = logger }
}

// WithDocument sets the page document. The default is an empty page.
func WithDocument(doc *dom.Document) Option {
	return func(a *Application) { a.doc = doc }
}

// WithHost sets the browser host the router drives. The default is a
// MemoryHost at "/".
func WithHost(host history.Host) Option {
	return func(a *Application) { a.host = host }
}

// WithModuleSelector sets the selector that finds module elements.
func WithModuleSelector(selector string) Option {
	return func(a *Application) { a.moduleSelector = selector }
}

// WithModuleAttribute sets the data property naming an element's module
// type. "module" reads data-module.
func WithModuleAttribute(property string) Option {
	return func(a *Application) { a.moduleAttribute = property }
}

// WithRouterErrorHandler receives errors from route dispatches caused by
// back/forward navigation.
func WithRouterErrorHandler(fn func(error)) Option {
	return func(a *Application) { a.routerErrors = fn }
}

// Application is the framework core for one page.
type Application struct {
	events.Target

	doc             *dom.Document
	host            history.Host
	router          *history.History
	services        *services.Registry[*Application]
	logger          logging.Logger
	moduleSelector  string
	moduleAttribute string
	routerErrors    func(error)

	modules   map[string]*descriptor
	instances map[string]*Record
	order     []string
	element   *html.Node
}

// New creates an application with the dom service registered.
func New(opts ...Option) (*Application, error) {
	a := &Application{
		moduleSelector:  DefaultModuleSelector,
		moduleAttribute: DefaultModuleAttribute,
		modules:         make(map[string]*descriptor),
		instances:       make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	a.logger = a.logger.WithComponent("app")

	if a.doc == nil {
		doc, err := dom.ParseString(blankDocument)
		if err != nil {
			return nil, err
		}
		a.doc = doc
	}
	if a.host == nil {
		a.host = history.NewMemoryHost("/", a.doc.Title())
	}
	if _, err := dom.Compile(a.moduleSelector); err != nil {
		return nil, fmt.Errorf("module selector: %w", err)
	}

	routerOpts := []history.Option{history.WithLogger(a.logger)}
	if a.routerErrors != nil {
		routerOpts = append(routerOpts, history.WithErrorHandler(a.routerErrors))
	}
	a.router = history.New(a.host, routerOpts...)

	a.services = services.NewRegistry(a)
	a.services.Add(DOMService, func(a *Application) (any, error) {
		return dom.NewService(a.doc, a, a.logger), nil
	})

	return a, nil
}

// Document returns the page document.
func (a *Application) Document() *dom.Document {
	return a.doc
}

// Router returns the router.
func (a *Application) Router() *history.History {
	return a.router
}

// Element returns the root element resolved by Init.
func (a *Application) Element() *html.Node {
	return a.element
}

// DOM returns the dom service. If "dom" was replaced by something that is not
// a *dom.Service, a private service bound to the document is used instead.
func (a *Application) DOM() *dom.Service {
	svc, err := a.services.Get(DOMService)
	if d, ok := svc.(*dom.Service); ok && err == nil {
		return d
	}
	if err == nil {
		err = fmt.Errorf("service %q is %T", DOMService, svc)
	}
	a.logger.Warn(context.Background(), err, "dom service unavailable, using document directly")
	return dom.NewService(a.doc, a, a.logger)
}

// Init resolves the root element, starts the router, then starts every
// module in the document body. A selector that matches nothing leaves
// Element nil.
func (a *Application) Init(rootSelector string, opts history.Options) error {
	a.element = a.DOM().Query(rootSelector, nil)
	if a.element == nil {
		a.logger.Warn(context.Background(), wberrors.NewRootNotFoundError(rootSelector), "root element not found")
	}

	if _, err := a.router.Start(opts); err != nil {
		return err
	}

	return a.StartAllModules(a.doc.Body())
}

// Shutdown stops every module, stops the router and shuts down services.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.StopAllModules(a.doc.Body()); err != nil {
		errs = append(errs, err)
	}
	a.router.Stop()
	if err := a.services.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AddService registers a service factory. See services.Registry.Add.
func (a *Application) AddService(name string, factory services.Factory[*Application]) {
	a.services.Add(name, factory)
}

// GetService returns the named service, building it on first use. Unknown
// names yield (nil, nil).
func (a *Application) GetService(name string) (any, error) {
	svc, err := a.services.Get(name)
	if errors.Is(err, wberrors.ErrCyclicService) {
		a.logger.Warn(context.Background(), err, "cyclic service request", "service", name)
	}
	return svc, err
}

// AddModule registers a module type. Registering a name again replaces the
// factory and restarts id numbering at 1.
func (a *Application) AddModule(name string, factory Factory) {
	a.modules[name] = &descriptor{name: name, factory: factory, counter: 1}
}

// HasModule reports whether a module type is registered.
func (a *Application) HasModule(name string) bool {
	_, ok := a.modules[name]
	return ok
}

// AddRoute registers a route. The handler is built by factory at dispatch
// time.
func (a *Application) AddRoute(m history.Matcher, factory RouteFactory) {
	a.router.Route(m, func(fragment string) error {
		return factory(a)(fragment)
	})
}

// Navigate changes the URL. See history.History.Navigate.
func (a *Application) Navigate(fragment string, opts history.NavigateOptions) (bool, error) {
	return a.router.Navigate(fragment, opts)
}

// StartModule starts the module named by el's module attribute. It does
// nothing when the name is not registered or el already has a live instance.
// An element without an id is given "<module>-<n>". Every instance
// advances n, whether or not its id was synthesized.
func (a *Application) StartModule(el *html.Node) error {
	if el == nil {
		return nil
	}
	d := a.DOM()
	name := d.GetData(el, a.moduleAttribute)

	desc, ok := a.modules[name]
	if !ok {
		a.logger.Debug(context.Background(), "no module registered for element", "module", name)
		return nil
	}
	if a.IsModuleStarted(el) {
		return nil
	}

	id := d.ID(el)
	if id == "" {
		id = fmt.Sprintf("%s-%d", name, desc.counter)
		d.SetID(el, id)
	}
	desc.counter++

	ctx := newContext(a, el)
	instance, err := desc.factory(ctx)
	if err != nil {
		return wberrors.WrapModule(err, name, "create")
	}

	a.instances[id] = &Record{
		ID:       id,
		Module:   name,
		Instance: instance,
		Context:  ctx,
		Element:  el,
	}
	a.order = append(a.order, id)

	a.logger.Debug(context.Background(), "module started", "module", name, "id", id)

	if i, ok := instance.(Initializer); ok {
		if err := i.Init(); err != nil {
			return wberrors.WrapModule(err, name, "init")
		}
	}

	return a.Fire(EventModuleStart, ModuleEvent{ID: id, Module: name})
}

// StopModule stops el's instance. It does nothing when el has none. If
// Destroy fails the instance stays recorded.
func (a *Application) StopModule(el *html.Node) error {
	if el == nil {
		return nil
	}
	id := a.DOM().ID(el)
	rec, ok := a.instances[id]
	if !ok {
		return nil
	}

	if d, ok := rec.Instance.(Destroyer); ok {
		if err := d.Destroy(); err != nil {
			return wberrors.WrapModule(err, rec.Module, "destroy")
		}
	}

	delete(a.instances, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			break
		}
	}

	a.logger.Debug(context.Background(), "module stopped", "module", rec.Module, "id", id)

	return a.Fire(EventModuleStop, ModuleEvent{ID: id, Module: rec.Module})
}

// IsModuleStarted reports whether el has a live instance.
func (a *Application) IsModuleStarted(el *html.Node) bool {
	if el == nil {
		return false
	}
	_, ok := a.instances[a.DOM().ID(el)]
	return ok
}

// StartAllModules starts every module element below root in document order.
// Elements added by a module's Init during the pass may be missed. The first
// error stops the pass.
func (a *Application) StartAllModules(root *html.Node) error {
	for _, el := range a.DOM().QueryAll(a.moduleSelector, root) {
		if err := a.StartModule(el); err != nil {
			return err
		}
	}
	return nil
}

// StopAllModules stops every module element below root in document order.
func (a *Application) StopAllModules(root *html.Node) error {
	for _, el := range a.DOM().QueryAll(a.moduleSelector, root) {
		if err := a.StopModule(el); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast delivers a message to every live instance subscribed to name, in
// start order. The set of instances is fixed when Broadcast is called, so
// modules started or stopped by a handler do not change this delivery. The
// first handler error stops delivery and is returned.
func (a *Application) Broadcast(name string, data any) error {
	recipients := make([]*Record, 0, len(a.order))
	for _, id := range a.order {
		recipients = append(recipients, a.instances[id])
	}

	delivered := 0
	for _, rec := range recipients {
		m, ok := rec.Instance.(Messaging)
		if !ok || !subscribes(m, name) {
			continue
		}
		delivered++
		if err := m.OnMessage(name, data); err != nil {
			return wberrors.WrapModule(err, rec.Module, "onmessage")
		}
	}

	return a.Fire(EventBroadcast, MessageEvent{Name: name, Data: data, Recipients: delivered})
}

// Instances returns the ids of live instances in start order.
func (a *Application) Instances() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Instance returns the record for id.
func (a *Application) Instance(id string) (*Record, bool) {
	rec, ok := a.instances[id]
	return rec, ok
}
