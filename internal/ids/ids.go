// Package ids mints primary keys for directory entities.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs are unique, URL-safe and sort by
// creation time, which keeps created_at-ordered listings aligned with
// the primary key index.
func New() string {
	return ulid.Make().String()
}
