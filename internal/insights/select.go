// Package insights holds the synchronization core: selecting which feed
// records to deliver against the persisted cursor, and the poller that drives
// the cycle.
package insights

import (
	"sort"
	"time"

	"github.com/keepstack/keepsync/internal/feed"
)

// Selection is the outcome of comparing a feed snapshot against the cursor.
//
// Deliver holds the records to notify, ordered oldest first so notifications
// arrive in creation order. NewCursor is the timestamp the cursor should be
// advanced to once the cycle completes; a zero NewCursor means the cursor must
// not move this cycle.
type Selection struct {
	Deliver   []feed.Record
	NewCursor time.Time
	// FirstRun is set when no cursor existed: the cursor is armed at the
	// newest record without delivering anything, so pre-existing backlog
	// never floods the device.
	FirstRun bool
}

// Select decides what to deliver. cursor is the persisted watermark; a zero
// cursor means none has ever been stored.
//
// Rules:
//   - An empty feed changes nothing, cursor present or not.
//   - With no cursor, nothing is delivered and the cursor arms at the maximum
//     created-at across the whole feed, read or unread.
//   - With a cursor, candidates are records that are unread and strictly newer
//     than the cursor. The cursor advances to the newest candidate; if there
//     are no candidates it stays put.
func Select(records []feed.Record, cursor time.Time) Selection {
	if len(records) == 0 {
		return Selection{}
	}

	if cursor.IsZero() {
		max := records[0].CreatedAt
		for _, r := range records[1:] {
			if r.CreatedAt.After(max) {
				max = r.CreatedAt
			}
		}
		return Selection{NewCursor: max, FirstRun: true}
	}

	var deliver []feed.Record
	for _, r := range records {
		if r.IsRead || !r.CreatedAt.After(cursor) {
			continue
		}
		deliver = append(deliver, r)
	}
	if len(deliver) == 0 {
		return Selection{}
	}

	sort.SliceStable(deliver, func(i, j int) bool {
		return deliver[i].CreatedAt.Before(deliver[j].CreatedAt)
	})

	return Selection{
		Deliver:   deliver,
		NewCursor: deliver[len(deliver)-1].CreatedAt,
	}
}
