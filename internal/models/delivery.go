package models

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery journals a notification that was handed to the device for a single
// insight. The journal is an audit trail behind the status API; deduplication
// itself is enforced by the cursor and the feed's read state, not by this table.
type Delivery struct {
	BaseModel

	InsightID        string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"insight_id"`
	InsightType      string         `gorm:"type:varchar(64)" json:"insight_type"`
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	Body             string         `gorm:"type:text" json:"body"`
	Payload          datatypes.JSON `json:"payload"`
	InsightCreatedAt time.Time      `gorm:"index" json:"insight_created_at"`
	DeliveredAt      time.Time      `gorm:"index" json:"delivered_at"`
}
