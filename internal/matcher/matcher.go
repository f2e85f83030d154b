// Package matcher compiles filter-list pattern syntax into Go regular
// expressions and matches URLs against them.
package matcher

import (
	"regexp"
	"strings"

	"github.com/bnema/abpcore/internal/filter"
)

const (
	// Separator matches any character that cannot appear in a hostname or
	// path token.
	restrSeparator = `[^%.0-9a-z_-]`
	// Hostname anchor for patterns starting with ||
	restrHostnameAnchor1 = `^[a-z-]+://(?:[^/?#]+\.)?`
	// Hostname anchor for patterns starting with ||.
	restrHostnameAnchor2 = `^[a-z-]+://(?:[^/?#]+)?`
)

var (
	// Characters to escape in the pattern (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Dangling asterisks at start/end
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	// Asterisks in pattern
	reAsterisks = regexp.MustCompile(`\*+`)
	// Separator placeholder
	reSeparators = regexp.MustCompile(`\^`)
)

// PatternToRegex converts a filter-list pattern to a regular expression
// source string.
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ".*"
	}

	s := pattern
	anchor := 0 // 0b100 = hostname (||), 0b010 = left (|), 0b001 = right (|)

	// Check for hostname anchor ||
	if strings.HasPrefix(s, "||") {
		anchor = 0b100
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		anchor = 0b010
		s = s[1:]
	}

	// Check for right anchor |
	if strings.HasSuffix(s, "|") {
		anchor |= 0b001
		s = s[:len(s)-1]
	}

	// Patterns enclosed in /.../ are raw regular expressions
	if strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") && len(s) > 2 {
		return s[1 : len(s)-1]
	}

	// Escape special regex characters (except * and ^)
	reStr := rePlainChars.ReplaceAllString(s, `\$0`)

	// Convert ^ to separator pattern
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)

	// Remove dangling asterisks
	reStr = reDanglingAsterisks.ReplaceAllString(reStr, "")

	// Convert * to wildcard match
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	// Apply anchors
	if anchor&0b100 != 0 {
		if strings.HasPrefix(reStr, `\.`) {
			reStr = restrHostnameAnchor2 + reStr
		} else {
			reStr = restrHostnameAnchor1 + reStr
		}
	} else if anchor&0b010 != 0 {
		reStr = "^" + reStr
	}

	if anchor&0b001 != 0 {
		reStr = reStr + "$"
	}

	return reStr
}

// Matcher implements filter.PatternMatcher on top of the standard regexp
// engine.
type Matcher struct{}

// New creates a matcher.
func New() *Matcher {
	return &Matcher{}
}

// Compile translates a filter-list pattern and compiles it. Case-insensitive
// matching is the default; matchCase turns it off.
func (m *Matcher) Compile(pattern string, matchCase bool) (filter.CompiledPattern, error) {
	source := PatternToRegex(pattern)
	if !matchCase {
		source = "(?i)" + source
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, err
	}
	return &compiledPattern{re: re}, nil
}

type compiledPattern struct {
	re *regexp.Regexp
}

// Matches reports whether the URL matches the compiled pattern.
func (p *compiledPattern) Matches(url string) bool {
	return p.re.MatchString(url)
}
