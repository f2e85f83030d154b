package filter

import (
	"strconv"
	"strings"

	"github.com/bnema/abpcore/internal/notifier"
	"github.com/bnema/abpcore/internal/text"
)

// defaultDomain is the sentinel key that scopes a filter to "everywhere
// else": hosts not matched by any explicit entry.
const defaultDomain = ""

// ActiveFilter is the shared surface of the five rule variants that can be
// toggled, counted and scoped to domains or sitekeys.
type ActiveFilter interface {
	Filter
	Disabled() bool
	SetDisabled(bool)
	HitCount() uint32
	SetHitCount(uint32)
	LastHit() uint64
	SetLastHit(uint64)
	IsActiveOnDomain(docDomain, sitekey string) bool
	IsActiveOnlyOnDomain(docDomain string) bool
	IsGeneric() bool
	Domains() map[string]bool
}

type activeFilter struct {
	baseFilter
	disabled bool
	hitCount uint32
	lastHit  uint64
	domains  map[string]bool
	sitekeys map[string]struct{}

	// Network filters treat "example.com." and "example.com" alike;
	// element-hide filters do not.
	ignoreTrailingDot bool

	// self is the concrete variant, reported to the notifier.
	self Filter
}

func newActiveFilter(txt string, typ Type, ignoreTrailingDot bool) activeFilter {
	return activeFilter{
		baseFilter:        baseFilter{text: txt, typ: typ, refs: 1},
		ignoreTrailingDot: ignoreTrailingDot,
	}
}

// Disabled reports whether the filter is switched off.
func (f *activeFilter) Disabled() bool { return f.disabled }

// SetDisabled toggles the filter and notifies on change.
func (f *activeFilter) SetDisabled(value bool) {
	if f.disabled != value {
		f.disabled = value
		notifier.FilterChange(notifier.FilterDisabled, f.self)
	}
}

// HitCount returns the number of times the filter was applied.
func (f *activeFilter) HitCount() uint32 { return f.hitCount }

// SetHitCount updates the hit counter and notifies on change.
func (f *activeFilter) SetHitCount(value uint32) {
	if f.hitCount != value {
		f.hitCount = value
		notifier.FilterChange(notifier.FilterHitCount, f.self)
	}
}

// LastHit returns the time of the last hit in milliseconds.
func (f *activeFilter) LastHit() uint64 { return f.lastHit }

// SetLastHit updates the last-hit timestamp and notifies on change.
func (f *activeFilter) SetLastHit(value uint64) {
	if f.lastHit != value {
		f.lastHit = value
		notifier.FilterChange(notifier.FilterLastHit, f.self)
	}
}

// Domains exposes the domain scope map. The default-domain sentinel entry is
// always present when the map is non-nil. Callers must not mutate it.
func (f *activeFilter) Domains() map[string]bool { return f.domains }

// IsActiveOnDomain reports whether the filter applies on a document host.
// The most specific matching entry wins: the full host is looked up first,
// then each dotted suffix, and finally the default entry.
func (f *activeFilter) IsActiveOnDomain(docDomain, sitekey string) bool {
	if f.sitekeys != nil {
		if _, ok := f.sitekeys[sitekey]; !ok {
			return false
		}
	}

	// No domain scope means the rule matches everywhere.
	if f.domains == nil {
		return true
	}

	if docDomain == "" {
		return f.domains[defaultDomain]
	}

	docDomain = f.normalizeHost(docDomain)
	for {
		if active, ok := f.domains[docDomain]; ok {
			return active
		}
		dot := strings.IndexByte(docDomain, '.')
		if dot < 0 {
			break
		}
		docDomain = docDomain[dot+1:]
	}
	return f.domains[defaultDomain]
}

// IsActiveOnlyOnDomain reports whether the filter is scoped to docDomain and
// nothing outside of it.
func (f *activeFilter) IsActiveOnlyOnDomain(docDomain string) bool {
	if f.domains == nil || docDomain == "" || f.domains[defaultDomain] {
		return false
	}

	docDomain = f.normalizeHost(docDomain)
	for entry, active := range f.domains {
		if !active || entry == docDomain {
			continue
		}
		// An include entry is acceptable only if it is docDomain itself or
		// sits strictly below it (ends with "." + docDomain).
		if len(entry) > len(docDomain) &&
			strings.HasSuffix(entry, docDomain) &&
			entry[len(entry)-len(docDomain)-1] == '.' {
			continue
		}
		return false
	}
	return true
}

// IsGeneric reports whether the filter is unscoped: no sitekeys and no
// include-mode domain entries.
func (f *activeFilter) IsGeneric() bool {
	return f.sitekeys == nil && (f.domains == nil || f.domains[defaultDomain])
}

func (f *activeFilter) normalizeHost(docDomain string) string {
	docDomain = strings.ToLower(docDomain)
	if f.ignoreTrailingDot && strings.HasSuffix(docDomain, ".") {
		docDomain = docDomain[:len(docDomain)-1]
	}
	return docDomain
}

// Serialize renders the filter and its mutable state in the text form
// consumed by storage layers.
func (f *activeFilter) Serialize() string {
	var sb strings.Builder
	sb.WriteString(f.baseFilter.Serialize())
	if f.disabled {
		sb.WriteString("disabled=true\n")
	}
	if f.hitCount != 0 {
		sb.WriteString("hitCount=")
		sb.WriteString(strconv.FormatUint(uint64(f.hitCount), 10))
		sb.WriteByte('\n')
	}
	if f.lastHit != 0 {
		sb.WriteString("lastHit=")
		sb.WriteString(strconv.FormatUint(f.lastHit, 10))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (f *activeFilter) addSitekey(sitekey string) {
	if f.sitekeys == nil {
		f.sitekeys = make(map[string]struct{})
	}
	f.sitekeys[sitekey] = struct{}{}
}

// domainSegment locates one entry inside a domain-list source string.
type domainSegment struct {
	pos     int
	len     int
	reverse bool
}

type parsedDomains struct {
	segments    []domainSegment
	hasIncludes bool
	hasEmpty    bool
}

// parseDomainList splits a separator-delimited domain list. A segment
// starting with "~" is an exclusion; a trailing dot is dropped when
// ignoreTrailingDot is set. Zero-length segments are recorded in hasEmpty.
// The scanner's terminator doubles as a virtual trailing separator so the
// last segment is closed like any other.
func parseDomainList(domains string, separator byte, ignoreTrailingDot bool) parsedDomains {
	sc := text.NewTerminated(domains, 0, separator)
	start := 0
	reverse := false
	var parsed parsedDomains

	done := sc.Done()
	for !done {
		done = sc.Done()
		curr := sc.Next()
		if curr == '~' && sc.Position() == start {
			start++
			reverse = true
		} else if curr == separator {
			length := sc.Position() - start
			if length > 0 && ignoreTrailingDot && domains[start+length-1] == '.' {
				length--
			}
			if length > 0 {
				parsed.segments = append(parsed.segments,
					domainSegment{pos: start, len: length, reverse: reverse})
				if !reverse {
					parsed.hasIncludes = true
				}
			} else {
				parsed.hasEmpty = true
			}
			start = sc.Position() + 1
			reverse = false
		}
	}
	return parsed
}

// fillDomains materializes the domain map from parsed segments, inserting
// the default-domain sentinel last.
func (f *activeFilter) fillDomains(domains string, parsed parsedDomains) {
	f.domains = make(map[string]bool, len(parsed.segments)+1)
	for _, seg := range parsed.segments {
		f.domains[domains[seg.pos:seg.pos+seg.len]] = !seg.reverse
	}
	f.domains[defaultDomain] = !parsed.hasIncludes
}
