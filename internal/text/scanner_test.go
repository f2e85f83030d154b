package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScannerPositionConvention(t *testing.T) {
	sc := New("ab")
	assert.Equal(t, -1, sc.Position(), "position before the first Next")

	assert.Equal(t, byte('a'), sc.Next())
	assert.Equal(t, 0, sc.Position())

	assert.Equal(t, byte('b'), sc.Next())
	assert.Equal(t, 1, sc.Position())
	assert.True(t, sc.Done())
}

func TestScannerTerminator(t *testing.T) {
	sc := NewTerminated("a", 0, ',')
	assert.Equal(t, byte('a'), sc.Next())
	assert.True(t, sc.Done())

	// Past the end the scanner keeps yielding the terminator and keeps
	// advancing its position.
	assert.Equal(t, byte(','), sc.Next())
	assert.Equal(t, 1, sc.Position())
	assert.Equal(t, byte(','), sc.Next())
	assert.Equal(t, 2, sc.Position())
}

func TestScannerBack(t *testing.T) {
	sc := New("xy")
	sc.Next()
	sc.Back()
	assert.Equal(t, byte('x'), sc.Next())

	sc = New("x")
	sc.Back() // at position zero Back is a no-op
	assert.Equal(t, byte('x'), sc.Next())
}

func TestScannerSkips(t *testing.T) {
	sc := New("  \t abc")
	assert.True(t, sc.SkipWhiteSpace())
	assert.False(t, sc.SkipWhiteSpace())
	assert.True(t, sc.SkipString("ab"))
	assert.False(t, sc.SkipString("cd"))
	assert.True(t, sc.SkipOne('c'))
	assert.True(t, sc.Done())

	sc = New("aaab")
	assert.True(t, sc.Skip('a'))
	assert.False(t, sc.Skip('a'))
	assert.Equal(t, byte('b'), sc.Next())
}

func TestScannerSkipStringPastEnd(t *testing.T) {
	sc := New("ab")
	sc.Next()
	assert.False(t, sc.SkipString("bcd"), "must not read past the end")
	assert.True(t, sc.SkipString("b"))
}
