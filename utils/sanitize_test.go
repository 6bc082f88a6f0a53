package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry", SanitizeInput("  Tom & Jerry "))
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", SanitizeInput("<b>x</b>"))
	assert.Equal(t, "O&#39;Neil", SanitizeInput("O'Neil"))
}

func TestContainsScript(t *testing.T) {
	assert.True(t, ContainsScript("hi <SCRIPT>alert(1)</script>"))
	assert.False(t, ContainsScript("Scripture Jones"))
}
