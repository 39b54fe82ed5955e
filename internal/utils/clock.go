package utils

import "time"

type Clock func() time.Time

// Now is the default clock. Postgres keeps microseconds, so timestamps are
// cut to that precision before they are stored or used as cursors.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
