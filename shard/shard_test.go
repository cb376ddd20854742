package shard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dhovart/cargo-local-registry/shard"
)

func TestPathSegments(t *testing.T) {
	cases := []struct {
		name     string
		expected string
	}{
		{"a", "1/a"},
		{"ab", "2/ab"},
		{"abc", "3/a/abc"},
		{"abcd", "ab/cd/abcd"},
		{"serde", "se/rd/serde"},
		{"libc", "li/bc/libc"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, shard.Path(c.name), c.name)
	}
}

// The shard path has exactly 1, 1, 2, or 2 directory segments preceding
// the filename for lengths 1, 2, 3, 4+ respectively, and the filename
// equals the (lowercased) name.
func TestPathSegmentCount(t *testing.T) {
	cases := map[string]int{
		"a":     1,
		"ab":    1,
		"abc":   2,
		"abcd":  2,
		"abcde": 2,
	}
	for name, wantSegments := range cases {
		p := shard.Path(name)
		parts := strings.Split(p, "/")
		assert.Equal(t, wantSegments, len(parts)-1, "name=%s path=%s", name, p)
		assert.Equal(t, strings.ToLower(name), parts[len(parts)-1])
	}
}

func TestPathCaseInsensitive(t *testing.T) {
	assert.Equal(t, shard.Path("inflector"), shard.Path("Inflector"))
	assert.Equal(t, "in/fl/inflector", shard.Path("Inflector"))
}
