package elemhide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/abpcore/internal/filter"
)

func elemHide(t *testing.T, line string) filter.ElemHideBase {
	t.Helper()
	f := filter.FromText(line)
	require.NotNil(t, f)
	t.Cleanup(f.Release)
	eh, ok := f.(filter.ElemHideBase)
	require.True(t, ok, "filter %q is not element-hide", line)
	return eh
}

func selectorTexts(selectors []Selector) []string {
	var texts []string
	for _, sel := range selectors {
		texts = append(texts, sel.Selector)
	}
	return texts
}

func TestIndexConditionalLookup(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	idx.Add(elemHide(t, "foo.com##.ad"))
	idx.Add(elemHide(t, "foo.com,~shop.foo.com##.promo"))
	idx.Add(elemHide(t, "bar.com##.other"))

	assert.Equal(t, []string{".ad", ".promo"},
		selectorTexts(idx.SelectorsForDomain("foo.com")))
	assert.Equal(t, []string{".ad", ".promo"},
		selectorTexts(idx.SelectorsForDomain("www.foo.com")))
	assert.Equal(t, []string{".ad"},
		selectorTexts(idx.SelectorsForDomain("shop.foo.com")),
		"excluded subdomain must not see .promo")
	assert.Equal(t, []string{".other"},
		selectorTexts(idx.SelectorsForDomain("bar.com")))
	assert.Empty(t, idx.SelectorsForDomain("unrelated.example"))
}

func TestIndexUnconditionalSelectors(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	idx.Add(elemHide(t, "##.banner"))
	idx.Add(elemHide(t, "~foo.com##.excl-only"))
	idx.Add(elemHide(t, "foo.com##.scoped"))

	assert.Equal(t, []string{".banner", ".excl-only"},
		selectorTexts(idx.UnconditionalSelectors()))
	assert.Equal(t, []string{".scoped"},
		selectorTexts(idx.SelectorsForDomain("foo.com")))
}

func TestIndexExceptionMasking(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	idx.Add(elemHide(t, "foo.com##.masked"))
	idx.Add(elemHide(t, "foo.com##.kept"))
	exception := elemHide(t, "foo.com#@#.masked")
	idx.Add(exception)

	assert.Equal(t, []string{".kept"},
		selectorTexts(idx.SelectorsForDomain("foo.com")))

	// The exception is scoped to foo.com; other hosts are unaffected.
	idx.Add(elemHide(t, "bar.com##.masked"))
	assert.Equal(t, []string{".masked"},
		selectorTexts(idx.SelectorsForDomain("bar.com")))

	// Removing the exception unmasks the selector.
	idx.Remove(exception)
	assert.Equal(t, []string{".masked", ".kept"},
		selectorTexts(idx.SelectorsForDomain("foo.com")))
}

func TestIndexUnconditionalExceptionMasking(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	idx.Add(elemHide(t, "##.uncond-masked"))
	idx.Add(elemHide(t, "##.uncond-kept"))
	idx.Add(elemHide(t, "#@#.uncond-masked"))

	assert.Equal(t, []string{".uncond-kept"},
		selectorTexts(idx.UnconditionalSelectors()))

	// A domain-scoped exception does not mask the empty-host lookup.
	idx.Add(elemHide(t, "foo.com#@#.uncond-kept"))
	assert.Equal(t, []string{".uncond-kept"},
		selectorTexts(idx.UnconditionalSelectors()))
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	scoped := elemHide(t, "foo.com##.rm-scoped")
	generic := elemHide(t, "##.rm-generic")
	idx.Add(scoped)
	idx.Add(generic)

	idx.Remove(scoped)
	assert.Empty(t, idx.SelectorsForDomain("foo.com"))
	assert.Equal(t, []string{".rm-generic"},
		selectorTexts(idx.UnconditionalSelectors()))

	idx.Remove(generic)
	assert.Empty(t, idx.UnconditionalSelectors())

	// Removing twice is harmless.
	idx.Remove(generic)
}

func TestIndexClear(t *testing.T) {
	idx := NewIndex()
	idx.Add(elemHide(t, "foo.com##.cl-a"))
	idx.Add(elemHide(t, "##.cl-b"))

	idx.Clear()
	assert.Empty(t, idx.SelectorsForDomain("foo.com"))
	assert.Empty(t, idx.UnconditionalSelectors())
}

func TestIndexFilterKeys(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	first := elemHide(t, "foo.com##.key-a")
	second := elemHide(t, "foo.com##.key-b")
	idx.Add(first)
	idx.Add(second)

	selectors := idx.SelectorsForDomain("foo.com")
	require.Len(t, selectors, 2)
	assert.Greater(t, selectors[0].FilterKey, 0)
	assert.Less(t, selectors[0].FilterKey, selectors[1].FilterKey)
	assert.Same(t, first, idx.FilterByKey(selectors[0].FilterKey))
	assert.Same(t, second, idx.FilterByKey(selectors[1].FilterKey))

	// Re-adding an indexed filter does not assign a new key.
	idx.Add(first)
	assert.Len(t, idx.SelectorsForDomain("foo.com"), 2)
}

func TestIndexDisabledFilters(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	scoped := elemHide(t, "foo.com##.dis-scoped")
	idx.Add(scoped)
	scoped.SetDisabled(true)
	assert.Empty(t, idx.SelectorsForDomain("foo.com"))
	scoped.SetDisabled(false)
	assert.Len(t, idx.SelectorsForDomain("foo.com"), 1)
}

func TestIndexEmulationRules(t *testing.T) {
	idx := NewIndex()
	defer idx.Clear()

	emulation := elemHide(t, "foo.com#?#div:-abp-has(.emu)")
	idx.Add(emulation)
	idx.Add(elemHide(t, "foo.com##.plain"))

	rules := idx.EmulationRulesForDomain("foo.com")
	require.Len(t, rules, 1)
	assert.Equal(t, "div:-abp-has(.emu)", rules[0].Selector())

	assert.Empty(t, idx.EmulationRulesForDomain("bar.com"))

	// Emulation filters never surface through the plain selector lookup.
	assert.Equal(t, []string{".plain"},
		selectorTexts(idx.SelectorsForDomain("foo.com")))
}
