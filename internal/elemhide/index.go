// Package elemhide maintains the per-domain element-hiding selector index
// with exception masking and an unconditional fast path.
package elemhide

import (
	"sort"
	"strings"

	"github.com/bnema/abpcore/internal/filter"
)

// Selector is one selector contributed to a document, together with the key
// of the filter that contributed it. The same selector may appear more than
// once when several filters contribute it; callers may dedupe.
type Selector struct {
	Selector  string
	FilterKey int
}

// Index answers "which CSS selectors should be hidden on this host".
// Filters are registered under a stable positive integer key. The index
// holds strong references to its filters.
type Index struct {
	nextKey int

	filters   map[int]filter.ElemHideBase
	keyByText map[string]int

	// Conditional filters, reachable through each of their include domains.
	filtersByDomain map[string]map[int]filter.ElemHideBase

	// Selectors applying everywhere, keyed by filter key.
	unconditional map[int]string

	// Exceptions by the selector they exempt.
	exceptions map[string][]*filter.ElemHideException

	// Emulation filters, always domain-scoped.
	emulation map[int]*filter.ElemHideEmulation
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	idx := &Index{}
	idx.Clear()
	return idx
}

// Add registers a filter. Re-adding a filter with the same text is a no-op.
func (idx *Index) Add(f filter.ElemHideBase) {
	if _, ok := idx.keyByText[f.Text()]; ok {
		return
	}
	idx.nextKey++
	key := idx.nextKey
	idx.filters[key] = f
	idx.keyByText[f.Text()] = key
	f.Retain()

	switch ef := f.(type) {
	case *filter.ElemHideException:
		selector := ef.Selector()
		idx.exceptions[selector] = append(idx.exceptions[selector], ef)
	case *filter.ElemHideEmulation:
		idx.emulation[key] = ef
	default:
		includes := includeDomains(f)
		if len(includes) == 0 {
			idx.unconditional[key] = f.Selector()
			return
		}
		for _, domain := range includes {
			contributors, ok := idx.filtersByDomain[domain]
			if !ok {
				contributors = make(map[int]filter.ElemHideBase)
				idx.filtersByDomain[domain] = contributors
			}
			contributors[key] = f
		}
	}
}

// Remove drops a filter from every sub-index.
func (idx *Index) Remove(f filter.ElemHideBase) {
	key, ok := idx.keyByText[f.Text()]
	if !ok {
		return
	}
	registered := idx.filters[key]
	delete(idx.filters, key)
	delete(idx.keyByText, f.Text())
	delete(idx.unconditional, key)
	delete(idx.emulation, key)

	for _, domain := range includeDomains(registered) {
		if contributors, ok := idx.filtersByDomain[domain]; ok {
			delete(contributors, key)
			if len(contributors) == 0 {
				delete(idx.filtersByDomain, domain)
			}
		}
	}

	if ef, ok := registered.(*filter.ElemHideException); ok {
		selector := ef.Selector()
		remaining := idx.exceptions[selector][:0]
		for _, exception := range idx.exceptions[selector] {
			if exception != ef {
				remaining = append(remaining, exception)
			}
		}
		if len(remaining) == 0 {
			delete(idx.exceptions, selector)
		} else {
			idx.exceptions[selector] = remaining
		}
	}

	registered.Release()
}

// Clear empties the index, releasing every registered filter.
func (idx *Index) Clear() {
	for _, f := range idx.filters {
		f.Release()
	}
	idx.filters = make(map[int]filter.ElemHideBase)
	idx.keyByText = make(map[string]int)
	idx.filtersByDomain = make(map[string]map[int]filter.ElemHideBase)
	idx.unconditional = make(map[int]string)
	idx.exceptions = make(map[string][]*filter.ElemHideException)
	idx.emulation = make(map[int]*filter.ElemHideEmulation)
}

// SelectorsForDomain returns the conditional selectors applying on host,
// minus the ones masked by a live exception. Results are ordered by filter
// key.
func (idx *Index) SelectorsForDomain(host string) []Selector {
	seen := make(map[int]struct{})
	var result []Selector

	domain := strings.ToLower(host)
	for {
		for key, f := range idx.filtersByDomain[domain] {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if f.Disabled() || !f.IsActiveOnDomain(host, "") {
				continue
			}
			selector := f.Selector()
			if idx.exceptionApplies(selector, host) {
				continue
			}
			result = append(result, Selector{Selector: selector, FilterKey: key})
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}

	sort.Slice(result, func(i, j int) bool { return result[i].FilterKey < result[j].FilterKey })
	return result
}

// UnconditionalSelectors returns the selectors applying everywhere, minus
// the ones masked by an exception that is itself unscoped.
func (idx *Index) UnconditionalSelectors() []Selector {
	var result []Selector
	for key, selector := range idx.unconditional {
		if f := idx.filters[key]; f != nil && f.Disabled() {
			continue
		}
		if idx.exceptionApplies(selector, "") {
			continue
		}
		result = append(result, Selector{Selector: selector, FilterKey: key})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FilterKey < result[j].FilterKey })
	return result
}

// EmulationRulesForDomain returns the emulation filters active on host,
// ordered by filter key.
func (idx *Index) EmulationRulesForDomain(host string) []*filter.ElemHideEmulation {
	keys := make([]int, 0, len(idx.emulation))
	for key := range idx.emulation {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	var result []*filter.ElemHideEmulation
	for _, key := range keys {
		f := idx.emulation[key]
		if !f.Disabled() && f.IsActiveOnDomain(host, "") {
			result = append(result, f)
		}
	}
	return result
}

// FilterByKey returns the filter registered under key, or nil.
func (idx *Index) FilterByKey(key int) filter.ElemHideBase {
	return idx.filters[key]
}

func (idx *Index) exceptionApplies(selector, host string) bool {
	for _, exception := range idx.exceptions[selector] {
		if !exception.Disabled() && exception.IsActiveOnDomain(host, "") {
			return true
		}
	}
	return false
}

func includeDomains(f filter.ElemHideBase) []string {
	var includes []string
	for domain, include := range f.Domains() {
		if include && domain != "" {
			includes = append(includes, domain)
		}
	}
	return includes
}
