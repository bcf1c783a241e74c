//go:build property

package app

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/whiteboard/internal/dom"
)

func pageWithModules(n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		sb.WriteString(`<div class="module" data-module="tile"></div>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestApplicationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ids are numbered in document order", prop.ForAll(
		func(n int) bool {
			doc, err := dom.ParseString(pageWithModules(n))
			if err != nil {
				return false
			}
			a, err := New(WithDocument(doc))
			if err != nil {
				return false
			}
			a.AddModule("tile", func(*Context) (Module, error) { return nil, nil })
			if err := a.StartAllModules(nil); err != nil {
				return false
			}

			ids := a.Instances()
			if len(ids) != n {
				return false
			}
			for i, id := range ids {
				if id != fmt.Sprintf("tile-%d", i+1) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 25),
	))

	properties.Property("starting twice yields one record per element", prop.ForAll(
		func(n int) bool {
			doc, _ := dom.ParseString(pageWithModules(n))
			a, _ := New(WithDocument(doc))
			calls := 0
			a.AddModule("tile", func(*Context) (Module, error) {
				calls++
				return nil, nil
			})
			_ = a.StartAllModules(nil)
			_ = a.StartAllModules(nil)
			return calls == n && len(a.Instances()) == n
		},
		gen.IntRange(0, 25),
	))

	properties.Property("stop after start leaves nothing live", prop.ForAll(
		func(n int) bool {
			doc, _ := dom.ParseString(pageWithModules(n))
			a, _ := New(WithDocument(doc))
			a.AddModule("tile", func(*Context) (Module, error) { return nil, nil })
			_ = a.StartAllModules(nil)
			_ = a.StopAllModules(nil)
			_ = a.StopAllModules(nil)
			return len(a.Instances()) == 0
		},
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}
