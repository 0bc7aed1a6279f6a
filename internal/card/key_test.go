package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContent(t *testing.T) {
	assert.Equal(t, "the question", NormalizeContent("  The Question "))
	assert.Equal(t, "line one\nline two", NormalizeContent("Line one\r\nLine two\r\n"))
}

func TestContentKeyStableUnderCosmeticEdits(t *testing.T) {
	base := ContentKey("The Question", "An Answer")

	assert.Equal(t, base, ContentKey("  the question ", "an answer"))
	assert.Equal(t, base, ContentKey("The Question\r\n", "An Answer"))
	assert.NotEqual(t, base, ContentKey("The Question", "A Different Answer"))
}

func TestContentKeyFieldBoundary(t *testing.T) {
	assert.NotEqual(t, ContentKey("ab", "c"), ContentKey("a", "bc"))
}
