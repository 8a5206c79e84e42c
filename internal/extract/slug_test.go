package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableSlug_Deterministic(t *testing.T) {
	for _, seed := range []string{"12345", "example.com/斗破苍穹", ""} {
		a := StableSlug(seed, SlugLength)
		b := StableSlug(seed, SlugLength)
		assert.Equal(t, a, b, "同一种子应得到相同slug")
		assert.Len(t, a, SlugLength)
		for _, r := range a {
			assert.True(t, strings.ContainsRune(slugAlphabet, r), "非法字符 %q", r)
		}
	}
}

func TestStableSlug_DistinctSeeds(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 200; i++ {
		seed := "book-" + string(rune('a'+i%26)) + strings.Repeat("x", i/26)
		s := StableSlug(seed, SlugLength)
		if prev, ok := seen[s]; ok {
			t.Fatalf("种子 %q 与 %q 产生了相同的slug %q", seed, prev, s)
		}
		seen[s] = seed
	}
}

func TestStableSlug_KnownValue(t *testing.T) {
	// md5("1") = c4ca4238a0b923820dcc509a6f75849b, 前10位 0xc4ca4238a0
	assert.Equal(t, "6e1ng", StableSlug("1", 5))
}

func TestBookSlug_SeedChoice(t *testing.T) {
	assert.Equal(t, StableSlug("42", SlugLength), BookSlug("42", "a.com", "书名"))
	assert.Equal(t, StableSlug("a.com/书名", SlugLength), BookSlug("", "a.com", "书名"))
}
