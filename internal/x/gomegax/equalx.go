package gomegax

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"
)

// EqualX is an alternative to gomega.Equal() that compares values using
// go-cmp.
//
// If no options are given, nil and empty slices and maps are considered equal.
// The failure message includes a diff of the two values.
func EqualX(expected any, options ...cmp.Option) types.GomegaMatcher {
	if len(options) == 0 {
		options = append(options, cmpopts.EquateEmpty())
	}

	return &equalMatcher{
		expected: expected,
		options:  options,
	}
}

type equalMatcher struct {
	expected any
	options  cmp.Options
}

func (m *equalMatcher) Match(actual any) (bool, error) {
	return cmp.Equal(actual, m.expected, m.options), nil
}

func (m *equalMatcher) FailureMessage(actual any) string {
	a, aok := actual.(string)
	e, eok := m.expected.(string)
	if aok && eok {
		return format.MessageWithDiff(a, "to equal", e)
	}

	return format.Message(actual, "to equal", m.expected) +
		"\n\nDiff (-actual +expected):\n" +
		format.IndentString(cmp.Diff(actual, m.expected, m.options), 1)
}

func (m *equalMatcher) NegatedFailureMessage(actual any) string {
	return format.Message(actual, "not to equal", m.expected)
}
