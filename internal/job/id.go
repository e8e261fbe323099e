package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh job identifier: a zero-padded epoch-millisecond
// prefix followed by a random suffix. IDs sort by creation time and
// stay collision-free without any coordination between producers.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	return fmt.Sprintf("%013d-%s", t.UnixMilli(), uuid.NewString()[:8])
}
