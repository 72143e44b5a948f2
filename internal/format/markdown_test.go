package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMarkdown(t *testing.T) {
	res, _ := FormatMarkdown("**hello**")
	assert.Contains(t, res, "hello")
}

func TestFormatMarkdownWidth(t *testing.T) {
	res, err := FormatMarkdownWidth("some *markdown* text", 40)
	require.NoError(t, err)
	assert.Contains(t, res, "markdown")

	res, err = FormatMarkdownWidth("fallback", 0)
	require.NoError(t, err)
	assert.Contains(t, res, "fallback")
}
