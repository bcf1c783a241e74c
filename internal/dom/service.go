package dom

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/conneroisu/whiteboard/internal/logging"
)

// Lifecycle is the part of the application SetHTML needs: the modules inside
// an element are stopped before its content is replaced and started after.
type Lifecycle interface {
	StartAllModules(root *html.Node) error
	StopAllModules(root *html.Node) error
}

// Service gives modules access to the document. It is registered with the
// application as the "dom" service.
type Service struct {
	doc       *Document
	lifecycle Lifecycle
	logger    logging.Logger
	compiled  map[string]*Selector
}

// NewService binds a service to doc. lifecycle may be nil, in which case
// SetHTML only swaps content.
func NewService(doc *Document, lifecycle Lifecycle, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		doc:       doc,
		lifecycle: lifecycle,
		logger:    logger.WithComponent("dom"),
		compiled:  make(map[string]*Selector),
	}
}

// Document returns the underlying document.
func (s *Service) Document() *Document {
	return s.doc
}

func (s *Service) selector(source string) *Selector {
	if sel, ok := s.compiled[source]; ok {
		return sel
	}
	sel, err := Compile(source)
	if err != nil {
		s.logger.Debug(context.Background(), "selector matches nothing", "selector", source, "error", err.Error())
		sel = nil
	}
	s.compiled[source] = sel
	return sel
}

func (s *Service) scope(n *html.Node) *html.Node {
	if n != nil {
		return n
	}
	return s.doc.Root()
}

// Query returns the first element below scope matching selector, or nil. A
// nil scope searches the whole document.
func (s *Service) Query(selector string, scope *html.Node) *html.Node {
	sel := s.selector(selector)
	if sel == nil {
		return nil
	}

	var found *html.Node
	descendants(s.scope(scope), func(n *html.Node) bool {
		if sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// QueryAll returns every element below scope matching selector, in document
// order.
func (s *Service) QueryAll(selector string, scope *html.Node) []*html.Node {
	sel := s.selector(selector)
	if sel == nil {
		return nil
	}

	var out []*html.Node
	descendants(s.scope(scope), func(n *html.Node) bool {
		if sel.Match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// GetData reads a data attribute using dataset naming: "moduleName" reads
// data-module-name.
func (s *Service) GetData(el *html.Node, property string) string {
	if el == nil {
		return ""
	}
	return attr(el, DataAttribute(property))
}

// SetData writes a data attribute using dataset naming.
func (s *Service) SetData(el *html.Node, property, value string) {
	if el == nil {
		return
	}
	setAttr(el, DataAttribute(property), value)
}

// ID returns the element's id attribute.
func (s *Service) ID(el *html.Node) string {
	if el == nil {
		return ""
	}
	return attr(el, "id")
}

// SetID sets the element's id attribute.
func (s *Service) SetID(el *html.Node, id string) {
	if el == nil {
		return
	}
	setAttr(el, "id", id)
}

// SetHTML replaces the content of el with markup. Modules inside el are
// stopped first and modules in the new content are started afterwards. A
// nil el is a no-op.
func (s *Service) SetHTML(el *html.Node, markup string) error {
	if el == nil {
		return nil
	}
	if s.lifecycle != nil {
		if err := s.lifecycle.StopAllModules(el); err != nil {
			return err
		}
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), el)
	if err != nil {
		return err
	}

	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		el.AppendChild(n)
	}

	if s.lifecycle != nil {
		return s.lifecycle.StartAllModules(el)
	}
	return nil
}

// DataAttribute converts a dataset property name to its attribute name.
func DataAttribute(property string) string {
	var sb strings.Builder
	sb.WriteString("data-")
	for _, r := range property {
		if unicode.IsUpper(r) {
			sb.WriteByte('-')
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
