// Package internal contains the implementation packages of whiteboard.
//
// # Package Organization
//
//   - app: the Application, module lifecycle, broadcast and the module Context
//   - events: named-event listener registry embedded by Application and History
//   - services: lazily built, cached named services with cycle detection
//   - history: fragment router over a browser-history Host
//   - dom: HTML documents, selectors and the "dom" service handed to modules
//   - modules: built-in modules (partial, relay, link) and template routes
//   - config: .whiteboard.yml loading, environment overrides and validation
//   - server: dev server, websocket page sessions, metrics and prerendering
//   - watcher: debounced file watching that drives live reload
//   - errors, logging, version: ambient support
//
// # Concurrency
//
// An Application and everything it owns belongs to one goroutine and takes no
// locks. The server gives each websocket session its own Application and
// serializes the session's frames onto one goroutine; only the session table,
// the watcher and metrics are shared.
//
// # Inter-Package Communication
//
//   - Modules reach each other only through Broadcast and named services
//   - Routes render templates through the dom service, which stops the
//     modules in replaced content and starts those in new content
//   - The server observes Application and History events for metrics
//   - The watcher asks the server to reload sessions when files change
package internal
