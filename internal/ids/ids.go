// Package ids generates row identifiers for users, sessions and audit
// entries. ULIDs sort by creation time, which keeps the append-only audit
// table naturally ordered by primary key.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. Safe for concurrent use; identifiers
// issued within the same millisecond stay monotonically ordered.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
