package server

import (
	"fmt"
	"os"

	"github.com/conneroisu/whiteboard/internal/app"
	"github.com/conneroisu/whiteboard/internal/config"
	"github.com/conneroisu/whiteboard/internal/dom"
	"github.com/conneroisu/whiteboard/internal/history"
	"github.com/conneroisu/whiteboard/internal/logging"
	"github.com/conneroisu/whiteboard/internal/modules"
)

// BootOptions supplies the per-page collaborators of Boot. Zero values get a
// MemoryHost at "/", a nop logger, templates from the configured directory,
// and a notifier that drops relayed messages.
type BootOptions struct {
	Host         history.Host
	Logger       logging.Logger
	Loader       modules.Loader
	Notifier     modules.Notifier
	RouterErrors func(error)
}

// Boot parses the configured page and builds an application for it with the
// built-in modules and configured routes registered. The application is not
// started; call Start.
func Boot(cfg *config.Config, opts BootOptions) (*app.Application, error) {
	f, err := os.Open(cfg.App.Page)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", cfg.App.Page, err)
	}

	if opts.Host == nil {
		opts.Host = history.NewMemoryHost("/", doc.Title())
	}
	if opts.Loader == nil {
		opts.Loader = modules.FileLoader{Dir: cfg.App.Templates}
	}

	appOpts := []app.Option{
		app.WithDocument(doc),
		app.WithHost(opts.Host),
		app.WithModuleSelector(cfg.App.ModuleSelector),
		app.WithModuleAttribute(cfg.App.ModuleAttribute),
	}
	if opts.Logger != nil {
		appOpts = append(appOpts, app.WithLogger(opts.Logger))
	}
	if opts.RouterErrors != nil {
		appOpts = append(appOpts, app.WithRouterErrorHandler(opts.RouterErrors))
	}

	a, err := app.New(appOpts...)
	if err != nil {
		return nil, err
	}

	modules.Register(a, opts.Loader, opts.Notifier)

	matchers, err := cfg.Matchers()
	if err != nil {
		return nil, err
	}
	routes := make([]modules.Route, len(cfg.Routes))
	for i, r := range cfg.Routes {
		routes[i] = modules.Route{Matcher: matchers[i], Template: r.Template, Title: r.Title}
	}
	modules.AddRoutes(a, routes)

	return a, nil
}

// Start runs the application's bootstrap with the configured root selector
// and router options.
func Start(a *app.Application, cfg *config.Config) error {
	return a.Init(cfg.App.RootSelector, history.Options{
		Root:   cfg.Router.Root,
		Silent: cfg.Router.Silent,
	})
}

// Render boots the page at path, dispatches it, and returns the resulting
// document with its title set to what the routes left it.
func Render(cfg *config.Config, path string, logger logging.Logger) (*dom.Document, error) {
	host := history.NewMemoryHost(path, "")
	a, err := Boot(cfg, BootOptions{Host: host, Logger: logger})
	if err != nil {
		return nil, err
	}
	host.SetTitle(a.Document().Title())

	if err := Start(a, cfg); err != nil {
		return nil, err
	}
	if title := host.Title(); title != "" {
		a.Document().SetTitle(title)
	}
	return a.Document(), nil
}
