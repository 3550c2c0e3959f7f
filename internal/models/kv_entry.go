package models

import (
	"time"
)

// KVEntry represents a durable key-value record backing the sync cursor and
// other small pieces of state that must survive process restarts.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"` // zero means the entry never expires
	CreatedAt time.Time
	UpdatedAt time.Time
}
