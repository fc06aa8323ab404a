package contextutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIP(t *testing.T) {
	assert.Equal(t, "", HashIP("", "salt"))
	assert.Equal(t, "", HashIP("   ", "salt"))

	a := HashIP("203.0.113.7", "salt")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashIP(" 203.0.113.7 ", "salt"))
	assert.NotEqual(t, a, HashIP("203.0.113.7", "other"))
	assert.NotEqual(t, a, HashIP("203.0.113.8", "salt"))
	assert.NotContains(t, a, "203")

	// unsalted and oversized salts still hash
	assert.Len(t, HashIP("203.0.113.7", ""), 64)
	assert.Len(t, HashIP("203.0.113.7", strings.Repeat("k", 100)), 64)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "[EMPTY]", MaskSecret(""))
	assert.Equal(t, "******", MaskSecret("secret"))
	assert.Equal(t, "abcd****mnop", MaskSecret("abcdefghmnop"))
}
