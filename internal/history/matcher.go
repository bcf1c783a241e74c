package history

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Matcher decides whether a route applies to a fragment.
type Matcher interface {
	Match(fragment string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(fragment string) bool

// Match calls f.
func (f MatcherFunc) Match(fragment string) bool {
	return f(fragment)
}

type regexpMatcher struct {
	re *regexp.Regexp
}

func (m regexpMatcher) Match(fragment string) bool {
	return m.re.MatchString(fragment)
}

func (m regexpMatcher) String() string {
	return "regex:" + m.re.String()
}

// Regexp matches fragments against re. Anchor the expression to match whole
// fragments; an unanchored expression matches substrings.
func Regexp(re *regexp.Regexp) Matcher {
	return regexpMatcher{re: re}
}

// MustRegexp compiles expr and panics if it is invalid.
func MustRegexp(expr string) Matcher {
	return Regexp(regexp.MustCompile(expr))
}

type exactMatcher string

func (m exactMatcher) Match(fragment string) bool {
	return string(m) == fragment
}

func (m exactMatcher) String() string {
	return "exact:" + string(m)
}

// Exact matches one fragment, compared after normalization.
func Exact(fragment string) Matcher {
	return exactMatcher(NormalizeFragment(fragment))
}

type globMatcher string

func (m globMatcher) Match(fragment string) bool {
	ok, err := path.Match(string(m), fragment)
	return err == nil && ok
}

func (m globMatcher) String() string {
	return "glob:" + string(m)
}

// Glob matches fragments with path.Match syntax, so "users/*" matches
// "users/1" but not "users/1/edit".
func Glob(pattern string) (Matcher, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return globMatcher(pattern), nil
}

// Matcher kinds accepted by ParseMatcher.
const (
	KindRegex = "regex"
	KindExact = "exact"
	KindGlob  = "glob"
)

// ParseMatcher builds a matcher from a kind name and pattern, as written in
// configuration. An empty kind means regex.
func ParseMatcher(kind, pattern string) (Matcher, error) {
	switch strings.ToLower(kind) {
	case "", KindRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid route pattern %q: %w", pattern, err)
		}
		return Regexp(re), nil
	case KindExact:
		return Exact(pattern), nil
	case KindGlob:
		return Glob(pattern)
	default:
		return nil, fmt.Errorf("unknown route match kind %q", kind)
	}
}
