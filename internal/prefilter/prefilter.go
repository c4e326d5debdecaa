package prefilter

import (
	"fmt"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// Matcher is a multi-pattern literal matcher used to restrict conversion to
// rule files mentioning at least one keyword.
type Matcher struct {
	automaton ac.AhoCorasick
}

// New builds a matcher over the given keywords. At least one keyword is
// required; callers that want no filtering should not build a matcher.
func New(keywords []string, caseInsensitive bool) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("prefilter: no keywords given")
	}
	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: caseInsensitive,
		MatchKind:            ac.LeftMostLongestMatch,
	})
	return &Matcher{automaton: builder.Build(keywords)}, nil
}

// Match reports whether any keyword occurs in the text.
func (m *Matcher) Match(text string) bool {
	return len(m.automaton.FindAll(text)) > 0
}
