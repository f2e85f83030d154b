package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromTextClassification(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected Type
	}{
		{
			name:     "comment",
			line:     "! EasyList rules follow",
			expected: TypeComment,
		},
		{
			name:     "blocking",
			line:     "||ads.example.com^",
			expected: TypeBlocking,
		},
		{
			name:     "whitelist",
			line:     "@@||cdn.example.com^$script",
			expected: TypeWhitelist,
		},
		{
			name:     "element hide",
			line:     "##.banner",
			expected: TypeElemHide,
		},
		{
			name:     "element hide with domains",
			line:     "foo.com,~sub.foo.com##.ad",
			expected: TypeElemHide,
		},
		{
			name:     "element hide exception",
			line:     "foo.com#@#.ad",
			expected: TypeElemHideException,
		},
		{
			name:     "element hide emulation",
			line:     "foo.com#?#div:-abp-has(.ad)",
			expected: TypeElemHideEmulation,
		},
		{
			name:     "generic emulation is invalid",
			line:     "#?#div:-abp-has(.ad)",
			expected: TypeInvalid,
		},
		{
			name:     "unknown option is invalid",
			line:     "||example.com^$unknownthing",
			expected: TypeInvalid,
		},
		{
			name:     "elemhide shape with pipe falls through to network",
			line:     "|http://example.com/#anchor",
			expected: TypeBlocking,
		},
		{
			name:     "empty selector falls through to network",
			line:     "foo.com##",
			expected: TypeBlocking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FromText(tt.line)
			require.NotNil(t, f)
			defer f.Release()
			assert.Equal(t, tt.expected, f.Type())
		})
	}
}

func TestFromTextNormalization(t *testing.T) {
	f := FromText("  ||ads.example1.com^  ")
	require.NotNil(t, f)
	defer f.Release()
	assert.Equal(t, "||ads.example1.com^", f.Text())

	other := FromText("||ads.example1.com^")
	require.NotNil(t, other)
	defer other.Release()
	assert.Same(t, f, other, "normalized text must dedupe onto the same instance")

	// Control characters inside the line are stripped.
	ctl := FromText("||ads.\r\nexample1.com^")
	require.NotNil(t, ctl)
	defer ctl.Release()
	assert.Same(t, f, ctl)
}

func TestFromTextEmpty(t *testing.T) {
	assert.Nil(t, FromText(""))
	assert.Nil(t, FromText("   \t\r\n "))
}

func TestRegistryLifecycle(t *testing.T) {
	before := registrySize()

	f := FromText("||registry.example.com^")
	require.NotNil(t, f)
	assert.Equal(t, before+1, registrySize())

	second := FromText("||registry.example.com^")
	assert.Same(t, f, second)
	assert.Equal(t, before+1, registrySize())

	// Two references are held; the entry survives the first release.
	second.Release()
	assert.Equal(t, before+1, registrySize())
	f.Release()
	assert.Equal(t, before, registrySize())

	// A fresh parse after the purge yields a new instance.
	again := FromText("||registry.example.com^")
	require.NotNil(t, again)
	defer again.Release()
	assert.NotSame(t, f, again)
}

func TestInvalidFilterReason(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{
			name:   "unknown option",
			line:   "||example.com^$bogus-option",
			reason: ReasonUnknownOption,
		},
		{
			name:   "empty domain segment",
			line:   "foo.com,,bar.com##.ad",
			reason: ReasonInvalidDomain,
		},
		{
			name:   "generic emulation",
			line:   "#?#div:-abp-has(.ad)",
			reason: ReasonEmulationNoDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FromText(tt.line)
			require.NotNil(t, f)
			defer f.Release()
			invalid, ok := f.(*InvalidFilter)
			require.True(t, ok)
			assert.Equal(t, tt.reason, invalid.Reason())
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	f := FromText("||serialize.example.com^$script")
	require.NotNil(t, f)
	defer f.Release()

	active, ok := f.(ActiveFilter)
	require.True(t, ok)
	active.SetDisabled(true)
	active.SetHitCount(12)
	active.SetLastHit(34567)

	serialized := active.Serialize()
	lines := strings.Split(strings.TrimSuffix(serialized, "\n"), "\n")
	assert.Equal(t, []string{
		"[Filter]",
		"text=||serialize.example.com^$script",
		"disabled=true",
		"hitCount=12",
		"lastHit=34567",
	}, lines)
}

func TestSerializeSkipsDefaults(t *testing.T) {
	f := FromText("||defaults.example.com^")
	require.NotNil(t, f)
	defer f.Release()
	assert.Equal(t, "[Filter]\ntext=||defaults.example.com^\n", f.Serialize())

	comment := FromText("! a comment")
	require.NotNil(t, comment)
	defer comment.Release()
	assert.Equal(t, "[Filter]\ntext=! a comment\n", comment.Serialize())
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "untouched",
			input:    "abc",
			expected: "abc",
		},
		{
			name:     "leading and trailing spaces",
			input:    "  abc  ",
			expected: "abc",
		},
		{
			name:     "leading control characters",
			input:    "\r\n\tabc",
			expected: "abc",
		},
		{
			name:     "inner control characters removed",
			input:    "a\rb\nc",
			expected: "abc",
		},
		{
			name:     "inner spaces preserved",
			input:    "a b c",
			expected: "a b c",
		},
		{
			name:     "only whitespace",
			input:    " \t\r\n",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeWhitespace(tt.input))
		})
	}
}
