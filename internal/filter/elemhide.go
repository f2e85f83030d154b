package filter

import (
	"strings"

	"github.com/bnema/abpcore/internal/text"
)

// ElemHideBase is the shared surface of the element-hiding family.
type ElemHideBase interface {
	ActiveFilter
	Selector() string
	SelectorDomain() string
}

type elemHideBase struct {
	activeFilter
	domainsEnd    int
	selectorStart int
}

// Selector returns the CSS selector with curly braces escaped so the result
// can be embedded in a stylesheet body.
func (f *elemHideBase) Selector() string {
	selector := f.text[f.selectorStart:]
	if !strings.ContainsAny(selector, "{}") {
		return selector
	}
	var sb strings.Builder
	sb.Grow(len(selector) + 3*strings.Count(selector, "{") + 3*strings.Count(selector, "}"))
	for i := 0; i < len(selector); i++ {
		switch selector[i] {
		case '{':
			sb.WriteString("\\7B ")
		case '}':
			sb.WriteString("\\7D ")
		default:
			sb.WriteByte(selector[i])
		}
	}
	return sb.String()
}

// SelectorDomain returns the include-mode domains as a comma-separated list.
func (f *elemHideBase) SelectorDomain() string {
	var sb strings.Builder
	for domain, include := range f.domains {
		if include && domain != "" {
			if sb.Len() > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(domain)
		}
	}
	return sb.String()
}

// ElemHideFilter hides elements matched by a CSS selector.
type ElemHideFilter struct {
	elemHideBase
}

// ElemHideException exempts a selector from hiding.
type ElemHideException struct {
	elemHideBase
}

// ElemHideEmulation is an extended selector that requires emulation support
// in the document. It is never generic: parsing rewrites unscoped emulation
// filters to invalid.
type ElemHideEmulation struct {
	elemHideBase
}

type elemHideParse struct {
	typ           Type
	reason        string
	text          string
	domainsEnd    int
	selectorStart int
	parsed        parsedDomains
}

// parseElemHide recognizes "domains#[@|?]#selector". The second return value
// is false when the line is not element-hide shaped at all and should fall
// through to the network grammar.
func parseElemHide(s string) (elemHideParse, bool) {
	sc := text.New(s)
	var parse elemHideParse

	seenSpaces := false
	recognized := false
	for !sc.Done() {
		next := sc.Next()
		if next == '#' {
			parse.domainsEnd = sc.Position()
			recognized = true
			break
		}
		switch next {
		case '/', '*', '|', '@', '"', '!':
			return parse, false
		case ' ':
			seenSpaces = true
		}
	}
	if !recognized {
		return parse, false
	}

	seenSpaces = sc.Skip(' ') || seenSpaces
	emulation := false
	exception := sc.SkipOne('@')
	if exception {
		seenSpaces = sc.Skip(' ') || seenSpaces
	} else {
		emulation = sc.SkipOne('?')
	}

	if sc.Next() != '#' {
		return parse, false
	}

	// The selector must be non-empty.
	seenSpaces = sc.Skip(' ') || seenSpaces
	if sc.Done() {
		return parse, false
	}
	parse.selectorStart = sc.Position() + 1

	if seenSpaces {
		s = normalizeElemHide(s, &parse.domainsEnd, &parse.selectorStart)
	}
	if parse.domainsEnd > 0 {
		s = strings.ToLower(s[:parse.domainsEnd]) + s[parse.domainsEnd:]
	}
	parse.text = s

	parse.parsed = parseDomainList(s[:parse.domainsEnd], ',', false)
	if parse.parsed.hasEmpty {
		parse.typ = TypeInvalid
		parse.reason = ReasonInvalidDomain
		return parse, true
	}

	switch {
	case exception:
		parse.typ = TypeElemHideException
	case emulation:
		parse.typ = TypeElemHideEmulation
	default:
		parse.typ = TypeElemHide
	}
	return parse, true
}

// normalizeElemHide removes every space before the selector, shifting the
// recorded offsets accordingly. The first byte is already known to be
// non-space: the text was trimmed before parsing.
func normalizeElemHide(s string, domainsEnd, selectorStart *int) string {
	b := make([]byte, len(s))
	b[0] = s[0]
	delta := 0
	for pos := 1; pos < len(s); pos++ {
		if pos == *domainsEnd {
			*domainsEnd -= delta
		}
		if pos < *selectorStart && s[pos] == ' ' {
			delta++
		} else {
			b[pos-delta] = s[pos]
		}
	}
	*selectorStart -= delta
	return string(b[:len(s)-delta])
}

func newElemHideVariant(parse elemHideParse) Filter {
	if parse.typ == TypeInvalid {
		return &InvalidFilter{
			baseFilter: baseFilter{text: parse.text, typ: TypeInvalid, refs: 1},
			reason:     parse.reason,
		}
	}

	base := elemHideBase{
		activeFilter:  newActiveFilter(parse.text, parse.typ, false),
		domainsEnd:    parse.domainsEnd,
		selectorStart: parse.selectorStart,
	}
	if parse.domainsEnd != 0 {
		base.fillDomains(parse.text[:parse.domainsEnd], parse.parsed)
	}

	switch parse.typ {
	case TypeElemHideException:
		f := &ElemHideException{base}
		f.self = f
		return f
	case TypeElemHideEmulation:
		f := &ElemHideEmulation{base}
		f.self = f
		if f.IsGeneric() {
			return &InvalidFilter{
				baseFilter: baseFilter{text: parse.text, typ: TypeInvalid, refs: 1},
				reason:     ReasonEmulationNoDomain,
			}
		}
		return f
	default:
		f := &ElemHideFilter{base}
		f.self = f
		return f
	}
}

// DomainsEnd returns the byte offset where the domain prefix ends.
func (f *elemHideBase) DomainsEnd() int { return f.domainsEnd }

// SelectorStart returns the byte offset where the selector begins.
func (f *elemHideBase) SelectorStart() int { return f.selectorStart }
