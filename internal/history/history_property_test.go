//go:build property

package history

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestHistoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("fragment normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := NormalizeFragment(s)
			return NormalizeFragment(once) == once
		},
		genRawPath(),
	))

	properties.Property("root normalization is idempotent and slash-bounded", prop.ForAll(
		func(s string) bool {
			root := NormalizeRoot(s)
			return NormalizeRoot(root) == root &&
				root[0] == '/' && root[len(root)-1] == '/'
		},
		genRawPath(),
	))

	properties.Property("most recently registered matching route wins", prop.ForAll(
		func(count int) bool {
			h := New(NewMemoryHost("/", ""))
			winner := -1
			for i := 0; i < count; i++ {
				i := i
				h.Route(MustRegexp(`.*`), func(string) error {
					winner = i
					return nil
				})
			}
			matched, err := h.LoadURL("anything")
			return err == nil && matched && winner == count-1
		},
		gen.IntRange(1, 30),
	))

	properties.Property("navigating to the current fragment never touches history", prop.ForAll(
		func(fragment string) bool {
			host := NewMemoryHost("/"+fragment, "")
			h := New(host)
			if _, err := h.Start(Options{Silent: true}); err != nil {
				return false
			}
			changed, err := h.Navigate(fragment, NavigateOptions{})
			return err == nil && !changed && host.Len() == 1
		},
		gen.RegexMatch(`[a-z0-9]{0,8}(/[a-z0-9]{1,8}){0,3}`),
	))

	properties.TestingRun(t)
}

func genRawPath() gopter.Gen {
	return gen.RegexMatch(`[/# \ta-z1]{0,16}`)
}
