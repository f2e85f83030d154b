// Package text provides the low-level cursor used by the filter and
// subscription parsers.
package text

// Scanner is a cursor over a string. Next consumes one byte at a time and
// returns the configured terminator once the input is exhausted, which lets
// parsers close their final token without special-casing end of input.
type Scanner struct {
	s    string
	pos  int
	term byte
}

// New creates a scanner over s that yields 0 past the end.
func New(s string) *Scanner {
	return NewTerminated(s, 0, 0)
}

// NewTerminated creates a scanner starting at pos that yields term past the
// end of s.
func NewTerminated(s string, pos int, term byte) *Scanner {
	return &Scanner{s: s, pos: pos, term: term}
}

// Done reports whether the cursor is past the last byte.
func (sc *Scanner) Done() bool {
	return sc.pos >= len(sc.s)
}

// Position returns the index of the most recently consumed byte. Before the
// first Next call it is one less than the starting position.
func (sc *Scanner) Position() int {
	return sc.pos - 1
}

// Back retreats the cursor by one byte.
func (sc *Scanner) Back() {
	if sc.pos > 0 {
		sc.pos--
	}
}

// Next returns the byte under the cursor and advances. Past the end it keeps
// advancing and returns the terminator.
func (sc *Scanner) Next() byte {
	result := sc.term
	if !sc.Done() {
		result = sc.s[sc.pos]
	}
	sc.pos++
	return result
}

// SkipWhiteSpace advances over whitespace and reports whether anything was
// skipped.
func (sc *Scanner) SkipWhiteSpace() bool {
	skipped := false
	for !sc.Done() && isSpace(sc.s[sc.pos]) {
		skipped = true
		sc.pos++
	}
	return skipped
}

// SkipString advances over str if the input continues with it.
func (sc *Scanner) SkipString(str string) bool {
	if len(str) > len(sc.s)-sc.pos {
		return false
	}
	if sc.s[sc.pos:sc.pos+len(str)] != str {
		return false
	}
	sc.pos += len(str)
	return true
}

// SkipOne advances over ch if it is the next byte.
func (sc *Scanner) SkipOne(ch byte) bool {
	if !sc.Done() && sc.s[sc.pos] == ch {
		sc.pos++
		return true
	}
	return false
}

// Skip greedily advances over a run of ch.
func (sc *Scanner) Skip(ch byte) bool {
	skipped := false
	for sc.SkipOne(ch) {
		skipped = true
	}
	return skipped
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
