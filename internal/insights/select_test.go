package insights

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keepstack/keepsync/internal/feed"
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelectEmptyFeed(t *testing.T) {
	sel := Select(nil, time.Time{})
	require.Empty(t, sel.Deliver)
	require.True(t, sel.NewCursor.IsZero())
	require.False(t, sel.FirstRun)

	sel = Select([]feed.Record{}, ts("2024-01-01T00:00:00Z"))
	require.Empty(t, sel.Deliver)
	require.True(t, sel.NewCursor.IsZero())
}

func TestSelectFirstRunArmsCursor(t *testing.T) {
	records := []feed.Record{
		{ID: "a", CreatedAt: ts("2024-01-02T00:00:00Z"), IsRead: false},
		{ID: "b", CreatedAt: ts("2024-01-05T00:00:00Z"), IsRead: true},
		{ID: "c", CreatedAt: ts("2024-01-03T00:00:00Z"), IsRead: false},
	}

	sel := Select(records, time.Time{})
	require.True(t, sel.FirstRun)
	require.Empty(t, sel.Deliver, "pre-existing backlog must not be delivered")
	require.Equal(t, ts("2024-01-05T00:00:00Z"), sel.NewCursor, "cursor arms at max created-at, read or unread")
}

func TestSelectCursorFiltering(t *testing.T) {
	cursor := ts("2024-01-01T00:00:00Z")
	records := []feed.Record{
		{ID: "id1", CreatedAt: ts("2024-01-02T00:00:00Z"), IsRead: false},
		{ID: "id2", CreatedAt: ts("2023-12-31T00:00:00Z"), IsRead: false},
		{ID: "id3", CreatedAt: ts("2024-01-03T00:00:00Z"), IsRead: true},
	}

	sel := Select(records, cursor)
	require.Len(t, sel.Deliver, 1)
	require.Equal(t, "id1", sel.Deliver[0].ID)
	require.Equal(t, ts("2024-01-02T00:00:00Z"), sel.NewCursor)
	require.False(t, sel.FirstRun)
}

func TestSelectNoCandidatesKeepsCursor(t *testing.T) {
	cursor := ts("2024-06-01T00:00:00Z")
	records := []feed.Record{
		{ID: "old", CreatedAt: ts("2024-05-01T00:00:00Z"), IsRead: false},
		{ID: "read", CreatedAt: ts("2024-07-01T00:00:00Z"), IsRead: true},
	}

	sel := Select(records, cursor)
	require.Empty(t, sel.Deliver)
	require.True(t, sel.NewCursor.IsZero(), "cursor must not move when nothing is delivered")
}

func TestSelectBoundaryIsExclusive(t *testing.T) {
	cursor := ts("2024-01-01T00:00:00Z")
	records := []feed.Record{
		{ID: "equal", CreatedAt: cursor, IsRead: false},
	}

	sel := Select(records, cursor)
	require.Empty(t, sel.Deliver, "record at exactly the cursor timestamp is already seen")
}

func TestSelectOrdersOldestFirst(t *testing.T) {
	cursor := ts("2024-01-01T00:00:00Z")
	records := []feed.Record{
		{ID: "c", CreatedAt: ts("2024-01-04T00:00:00Z")},
		{ID: "a", CreatedAt: ts("2024-01-02T00:00:00Z")},
		{ID: "b", CreatedAt: ts("2024-01-03T00:00:00Z")},
	}

	sel := Select(records, cursor)
	require.Len(t, sel.Deliver, 3)
	require.Equal(t, "a", sel.Deliver[0].ID)
	require.Equal(t, "b", sel.Deliver[1].ID)
	require.Equal(t, "c", sel.Deliver[2].ID)
	require.Equal(t, ts("2024-01-04T00:00:00Z"), sel.NewCursor)
}

func TestSelectOrderIndependent(t *testing.T) {
	cursor := ts("2024-01-01T00:00:00Z")
	base := []feed.Record{
		{ID: "id1", CreatedAt: ts("2024-01-02T00:00:00Z"), IsRead: false},
		{ID: "id2", CreatedAt: ts("2023-12-31T00:00:00Z"), IsRead: false},
		{ID: "id3", CreatedAt: ts("2024-01-03T00:00:00Z"), IsRead: true},
		{ID: "id4", CreatedAt: ts("2024-01-04T00:00:00Z"), IsRead: false},
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		records := make([]feed.Record, len(base))
		copy(records, base)
		rng.Shuffle(len(records), func(i, j int) {
			records[i], records[j] = records[j], records[i]
		})

		sel := Select(records, cursor)
		require.Len(t, sel.Deliver, 2)
		require.Equal(t, "id1", sel.Deliver[0].ID)
		require.Equal(t, "id4", sel.Deliver[1].ID)
		require.Equal(t, ts("2024-01-04T00:00:00Z"), sel.NewCursor)
	}
}
