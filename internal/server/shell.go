package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/whiteboard/internal/dom"
)

// clientScript connects the page to its session. It reports the initial
// location, back/forward navigation and clicks on link modules, and applies
// the frames the session sends back.
const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  function send(frame) { ws.send(JSON.stringify(frame)); }
  ws.onopen = function () {
    send({ type: "ready", path: location.pathname, title: document.title });
  };
  window.addEventListener("popstate", function () {
    send({ type: "popstate", path: location.pathname });
  });
  document.addEventListener("click", function (e) {
    var link = e.target.closest("[data-module=link]");
    if (!link || !link.id) { return; }
    e.preventDefault();
    send({ type: "message", name: "navigate", data: link.id });
  });
  window.whiteboard = {
    broadcast: function (name, data) { send({ type: "message", name: name, data: data }); },
    navigate: function (fragment, opts) {
      opts = opts || {};
      send({ type: "navigate", fragment: fragment, trigger: !!opts.trigger, replace: !!opts.replace });
    }
  };
  ws.onmessage = function (ev) {
    var f = JSON.parse(ev.data);
    switch (f.type) {
    case "pushState": history.pushState({}, f.title || "", f.url); break;
    case "replaceState": history.replaceState({}, f.title || "", f.url); break;
    case "title": document.title = f.title; break;
    case "render": document.body.innerHTML = f.html; break;
    case "reload": location.reload(); break;
    case "message":
      document.dispatchEvent(new CustomEvent("whiteboard:" + f.name, { detail: f.data }));
      break;
    case "error": console.error("whiteboard:", f.message); break;
    }
  };
})();`

// Shell renders doc with the client script appended to its body.
func Shell(doc *dom.Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		script := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Script,
			Data:     "script",
			Attr:     []html.Attribute{{Key: "data-whiteboard", Val: "client"}},
		}
		script.AppendChild(&html.Node{Type: html.TextNode, Data: clientScript})

		body := doc.Body()
		body.AppendChild(script)
		defer body.RemoveChild(script)

		return doc.Render(w)
	})
}
