// Package filter implements the filter-list domain model: the rule
// taxonomy, the line parser and the deduplicating registry that guarantees
// at most one live filter per canonical text.
package filter

// Type discriminates the filter variants.
type Type int

// Filter variants, from TypeInvalid through TypeElemHideEmulation.
const (
	TypeInvalid Type = iota
	TypeComment
	TypeBlocking
	TypeWhitelist
	TypeElemHide
	TypeElemHideException
	TypeElemHideEmulation
)

var typeNames = map[Type]string{
	TypeInvalid:           "invalid",
	TypeComment:           "comment",
	TypeBlocking:          "blocking",
	TypeWhitelist:         "whitelist",
	TypeElemHide:          "elemhide",
	TypeElemHideException: "elemhideexception",
	TypeElemHideEmulation: "elemhideemulation",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Filter is one parsed rule line. Instances are shared: FromText returns the
// same object for equal canonical texts as long as a reference is held.
// Holders call Retain to share a reference and Release to drop it; the last
// Release purges the registry entry.
type Filter interface {
	Text() string
	Type() Type
	Serialize() string
	Retain()
	Release()
}

type baseFilter struct {
	text string
	typ  Type
	refs int
}

func (f *baseFilter) Text() string { return f.text }
func (f *baseFilter) Type() Type   { return f.typ }

func (f *baseFilter) Serialize() string {
	return "[Filter]\ntext=" + f.text + "\n"
}

func (f *baseFilter) Retain() { f.refs++ }

func (f *baseFilter) Release() {
	f.refs--
	if f.refs <= 0 {
		delete(knownFilters, f.text)
	}
}

// CommentFilter is a line starting with "!".
type CommentFilter struct {
	baseFilter
}

// InvalidFilter is a rejected rule, preserved so callers can report it.
type InvalidFilter struct {
	baseFilter
	reason string
}

// Reason returns the machine-readable rejection code.
func (f *InvalidFilter) Reason() string { return f.reason }

// Rejection reason codes.
const (
	ReasonInvalidDomain       = "filter_invalid_domain"
	ReasonUnknownOption       = "filter_unknown_option"
	ReasonEmulationNoDomain   = "filter_elemhideemulation_nodomain"
	ReasonPatternCompileError = "filter_invalid_regexp"
)

// The registry holds one entry per canonical text. Entries are weak: they
// do not count as references, and the owning filter removes itself on its
// last Release. Access is not synchronized; callers serialize externally.
var knownFilters = make(map[string]Filter)

func lookupKnown(text string) Filter {
	if known, ok := knownFilters[text]; ok {
		known.Retain()
		return known
	}
	return nil
}

// FromText parses a rule line into a filter, reusing the registered instance
// when one exists for the same canonical text. It returns nil for lines that
// normalize to nothing. The returned reference is owned by the caller.
func FromText(s string) Filter {
	s = normalizeWhitespace(s)
	if s == "" {
		return nil
	}

	// Parsing normalizes the text further (element-hide filters drop inner
	// spaces), so it has to happen before the registry lookup.
	var f Filter
	switch {
	case s[0] == '!':
		if known := lookupKnown(s); known != nil {
			return known
		}
		f = &CommentFilter{baseFilter{text: s, typ: TypeComment, refs: 1}}
	default:
		if parse, ok := parseElemHide(s); ok {
			s = parse.text
			if known := lookupKnown(s); known != nil {
				return known
			}
			f = newElemHideVariant(parse)
		} else {
			parse := parseRegexp(s)
			if known := lookupKnown(s); known != nil {
				return known
			}
			f = newRegexpVariant(s, parse)
		}
	}

	// Key the entry by the filter's own canonical text, never the caller's
	// argument: the filter outlives this call frame.
	knownFilters[f.Text()] = f
	return f
}

// normalizeWhitespace trims leading characters at or below space, removes
// characters below space from the middle and trims trailing spaces. The
// result is the canonical text deduplication keys on.
func normalizeWhitespace(s string) string {
	start := 0
	end := len(s)
	for start < end && s[start] <= ' ' {
		start++
	}

	pos := start
	for pos < end && s[pos] >= ' ' {
		pos++
	}
	if pos < end {
		b := make([]byte, 0, end-start)
		b = append(b, s[start:pos]...)
		for ; pos < end; pos++ {
			if s[pos] >= ' ' {
				b = append(b, s[pos])
			}
		}
		for len(b) > 0 && b[len(b)-1] == ' ' {
			b = b[:len(b)-1]
		}
		return string(b)
	}

	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

func registrySize() int { return len(knownFilters) }
