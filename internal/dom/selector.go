package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/conneroisu/whiteboard/internal/errors"
)

// Selector is a compiled CSS selector list.
type Selector struct {
	source string
	group  cascadia.SelectorGroup
}

// String returns the selector source.
func (s *Selector) String() string {
	return s.source
}

// Compile parses a selector list.
func Compile(source string) (*Selector, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.NewSelectorError(source, "empty selector")
	}
	group, err := cascadia.ParseGroup(source)
	if err != nil {
		return nil, errors.NewSelectorError(source, err.Error())
	}
	return &Selector{source: source, group: group}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Selector {
	sel, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return sel
}

// Match reports whether n is an element matching any selector in the list.
func (s *Selector) Match(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && s.group.Match(n)
}
