// Package wildcard compiles FDSN-style wildcard patterns ('*', '?') into
// matchers. A leading '!' negates a pattern. Positive patterns are passed
// through to providers verbatim, because the FDSN query protocol supports
// them natively; negation is a local extension no remote protocol supports,
// so negated patterns are compiled here and applied after download.
package wildcard

import (
	"regexp"
	"strings"
)

// IsNegation reports whether the pattern carries the leading '!' marker.
func IsNegation(pattern string) bool {
	return strings.HasPrefix(pattern, "!")
}

// Split separates a pattern list into positive patterns (forwarded to the
// provider query) and negated patterns with their '!' stripped (applied
// locally after download).
func Split(patterns []string) (positive, negated []string) {
	for _, p := range patterns {
		if IsNegation(p) {
			negated = append(negated, p[1:])
		} else {
			positive = append(positive, p)
		}
	}
	return positive, negated
}

// Matcher matches strings against a set of negated patterns. The zero-value
// and nil matchers exclude nothing: an empty or all-positive pattern list
// means absence of constraint, not a matcher that matches nothing.
type Matcher struct {
	re *regexp.Regexp
}

// CompileNegations compiles the negated patterns of the list into a single
// matcher. Positive entries are ignored.
func CompileNegations(patterns []string) (*Matcher, error) {
	_, negated := Split(patterns)
	if len(negated) == 0 {
		return &Matcher{}, nil
	}

	alts := make([]string, len(negated))
	for i, p := range negated {
		alts[i] = Translate(p)
	}
	var source string
	if len(alts) == 1 {
		source = "^" + alts[0] + "$"
	} else {
		source = "^(?:" + strings.Join(alts, "|") + ")$"
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// Excludes reports whether s matches one of the negated patterns.
func (m *Matcher) Excludes(s string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(s)
}

// Translate converts an FDSN wildcard pattern into a regular expression
// source: literals are escaped, '*' maps to any-length and '?' to a single
// character.
func Translate(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// ToSQL converts an FDSN wildcard pattern into a SQL LIKE pattern:
// '*' maps to '%', '?' to '_', and LIKE metacharacters are escaped with a
// backslash.
func ToSQL(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		case '%', '_', '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasWildcards reports whether the pattern contains '*' or '?'. Patterns
// without wildcards can be compared with plain equality in SQL.
func HasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// Match reports whether s matches the (positive) FDSN pattern in full.
func Match(pattern, s string) bool {
	if !HasWildcards(pattern) {
		return pattern == s
	}
	matched, err := regexp.MatchString("^"+Translate(pattern)+"$", s)
	return err == nil && matched
}
