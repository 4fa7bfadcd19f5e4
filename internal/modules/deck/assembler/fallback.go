package assembler

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultFallbackPool is the fixed set of stock images used when a slide gets no generated image.
var DefaultFallbackPool = []string{
	"https://images.unsplash.com/photo-1451187580459-43490279c0fa?w=1600&q=80",
	"https://images.unsplash.com/photo-1460925895917-afdab827c52f?w=1600&q=80",
	"https://images.unsplash.com/photo-1504384308090-c894fdcc538d?w=1600&q=80",
	"https://images.unsplash.com/photo-1517245386807-bb43f82c33c4?w=1600&q=80",
	"https://images.unsplash.com/photo-1522071820081-009f0129c71c?w=1600&q=80",
	"https://images.unsplash.com/photo-1531297484001-80022131f5a1?w=1600&q=80",
	"https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=1600&q=80",
	"https://images.unsplash.com/photo-1486406146926-c627a92ad1ab?w=1600&q=80",
}

// Fallbacks picks stock images deterministically.
type Fallbacks struct {
	pool []string
}

func NewFallbacks(pool []string) Fallbacks {
	if len(pool) == 0 {
		pool = DefaultFallbackPool
	}
	cp := make([]string, len(pool))
	copy(cp, pool)
	return Fallbacks{pool: cp}
}

// ForDescription maps a description to a pool entry via xxhash64 of the trimmed text.
// The same description always yields the same image.
func (f Fallbacks) ForDescription(description string) string {
	h := xxhash.Sum64String(strings.TrimSpace(description))
	return f.pool[h%uint64(len(f.pool))]
}

// ForIndex is used for slides with neither a description nor an image.
func (f Fallbacks) ForIndex(i int) string {
	if i < 0 {
		i = -i
	}
	return f.pool[i%len(f.pool)]
}
