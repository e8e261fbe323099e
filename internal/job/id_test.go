package job

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Format(t *testing.T) {
	id := NewID()

	// 13-digit millisecond prefix, dash, 8 hex chars of random suffix
	re := regexp.MustCompile(`^\d{13}-[0-9a-f]{8}$`)
	assert.Regexp(t, re, id)
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id generated: %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewID_SortsByTime(t *testing.T) {
	earlier := newIDAt(time.UnixMilli(1700000000000))
	later := newIDAt(time.UnixMilli(1700000000001))

	assert.Less(t, earlier, later)
}
