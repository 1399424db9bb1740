package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdeaText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeIdeaText("  hello  "))
	assert.Equal(t, "a &lt;b&gt; c", SanitizeIdeaText("a <b> c"))

	long := strings.Repeat("x", 5000)
	assert.Len(t, SanitizeIdeaText(long), 4000)
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<SCRIPT>alert(1)</script>"))
	assert.True(t, ContainsSuspicious("img onerror=steal()"))
	assert.True(t, ContainsSuspicious("javascript:void(0)"))
	assert.False(t, ContainsSuspicious("A marketplace for used lab equipment"))
}
