package feed

import (
	"time"
)

// Well-known metadata keys carried from the feed through to the delivered
// notification payload and back via tap events.
const (
	MetaCaptureID = "capture_id"
	MetaAction    = "action"
	MetaType      = "type"
	MetaSource    = "source"
)

// Insight type tags produced by the capture pipeline.
const (
	TypeReminder      = "reminder"
	TypeDetectedEvent = "detected_event"
	TypeSuggestion    = "suggestion"
)

// Record is a single server-computed insight. The feed owns these records;
// keepsync never mutates them, it only decides which ones become notifications.
type Record struct {
	ID        string            `json:"id" validate:"required"`
	CreatedAt time.Time         `json:"created_at" validate:"required"`
	IsRead    bool              `json:"is_read"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CaptureID returns the capture identifier attached by the pipeline, if any.
func (r Record) CaptureID() string {
	return r.Metadata[MetaCaptureID]
}

// Type returns the insight type tag, if any.
func (r Record) Type() string {
	return r.Metadata[MetaType]
}
