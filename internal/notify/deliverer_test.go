package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/keepstack/keepsync/internal/feed"
)

type recordingDeliverer struct {
	delivered []Notification
	err       error
}

func (d *recordingDeliverer) Deliver(_ context.Context, n Notification) error {
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, n)
	return nil
}

func TestFromRecord(t *testing.T) {
	record := feed.Record{
		ID:      "ins-1",
		Title:   "  Dentist  ",
		Content: "Call before Friday",
		Metadata: map[string]string{
			"capture_id": "cap-9",
			"type":       feed.TypeReminder,
		},
	}

	n := FromRecord(record)
	require.Equal(t, "ins-1", n.InsightID)
	require.Equal(t, "Dentist", n.Title)
	require.Equal(t, "Call before Friday", n.Body)
	require.Equal(t, "cap-9", n.Payload["capture_id"])
	require.Equal(t, "ins-1", n.Payload["insight_id"])
}

func TestFromRecordDefaultsTitle(t *testing.T) {
	n := FromRecord(feed.Record{ID: "ins-1", Content: "something"})
	require.Equal(t, "New insight", n.Title)
}

func TestFromRecordTruncatesLongBodyOnRuneBoundary(t *testing.T) {
	content := strings.Repeat("日本語テキスト", 64)
	n := FromRecord(feed.Record{ID: "ins-1", Title: "Long", Content: content})

	runes := []rune(n.Body)
	require.Len(t, runes, maxBodyLength)
	require.Equal(t, '…', runes[len(runes)-1])
	require.True(t, utf8.ValidString(n.Body), "truncation must not split a rune")
	require.Equal(t, []rune(content)[:maxBodyLength-1], runes[:len(runes)-1])
}

func TestFromRecordKeepsShortBodyIntact(t *testing.T) {
	n := FromRecord(feed.Record{ID: "ins-1", Title: "Short", Content: "três cafés"})
	require.Equal(t, "três cafés", n.Body)
}

func TestFanoutCollectsFailures(t *testing.T) {
	ok := &recordingDeliverer{}
	broken := &recordingDeliverer{err: errors.New("push rejected")}
	fanout := NewFanout(broken, ok, nil)

	err := fanout.Deliver(context.Background(), Notification{InsightID: "ins-1"})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	require.Len(t, ok.delivered, 1, "healthy channel still receives the notification")
}

func TestPermissionGate(t *testing.T) {
	inner := &recordingDeliverer{}
	gate := NewPermissionGate(inner, false)

	require.NoError(t, gate.Deliver(context.Background(), Notification{InsightID: "ins-1"}))
	require.Empty(t, inner.delivered, "suppressed while permission not granted")

	gate.SetGranted(true)
	require.NoError(t, gate.Deliver(context.Background(), Notification{InsightID: "ins-2"}))
	require.Len(t, inner.delivered, 1)
	require.Equal(t, "ins-2", inner.delivered[0].InsightID)
}
