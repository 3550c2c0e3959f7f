package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keepstack/keepsync/internal/feed"
	"github.com/keepstack/keepsync/internal/models"
	"github.com/keepstack/keepsync/internal/notify"
)

// Journal records every notification handed to the device. It backs the
// status API; the cursor, not this table, is what prevents duplicate delivery.
type Journal struct {
	db *gorm.DB
}

// NewJournal constructs a delivery journal over the given database.
func NewJournal(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: database handle is required")
	}
	return &Journal{db: db}, nil
}

// Record journals a delivered insight. Re-recording the same insight updates
// the existing row instead of failing, so a crash between delivery and journal
// write cannot wedge the next cycle.
func (j *Journal) Record(ctx context.Context, record feed.Record, notification notify.Notification, deliveredAt time.Time) error {
	payload, err := json.Marshal(notification.Payload)
	if err != nil {
		return fmt.Errorf("journal: marshal payload: %w", err)
	}

	entry := models.Delivery{
		InsightID:        record.ID,
		InsightType:      record.Type(),
		Title:            notification.Title,
		Body:             notification.Body,
		Payload:          payload,
		InsightCreatedAt: record.CreatedAt,
		DeliveredAt:      deliveredAt,
	}

	err = j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "insight_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "body", "payload", "delivered_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("journal: record delivery: %w", err)
	}
	return nil
}

// ListRecent returns the most recently delivered insights, newest first.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 20
	}

	var deliveries []models.Delivery
	err := j.db.WithContext(ctx).
		Order("delivered_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("journal: list recent: %w", err)
	}
	return deliveries, nil
}

// Count returns the total number of journaled deliveries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := j.db.WithContext(ctx).Model(&models.Delivery{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return count, nil
}
