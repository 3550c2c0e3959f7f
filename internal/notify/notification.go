// Package notify turns selected insight records into device notifications and
// routes taps on those notifications back into in-app navigation.
package notify

import (
	"strings"

	"github.com/keepstack/keepsync/internal/feed"
)

// Notification is a single device notification ready for delivery.
type Notification struct {
	InsightID string            `json:"insight_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Payload   map[string]string `json:"payload,omitempty"`
}

const maxBodyLength = 240

// FromRecord builds the notification for an insight. The record metadata is
// carried through verbatim so a tap can resolve the capture it came from.
func FromRecord(record feed.Record) Notification {
	title := strings.TrimSpace(record.Title)
	if title == "" {
		title = "New insight"
	}

	body := strings.TrimSpace(record.Content)
	if runes := []rune(body); len(runes) > maxBodyLength {
		// Truncate on a rune boundary so multi-byte content is never cut
		// mid-character.
		body = string(runes[:maxBodyLength-1]) + "…"
	}

	payload := map[string]string{
		"insight_id": record.ID,
	}
	for key, value := range record.Metadata {
		payload[key] = value
	}

	return Notification{
		InsightID: record.ID,
		Title:     title,
		Body:      body,
		Payload:   payload,
	}
}
