package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQListed = 50
)

// DLQRepository stores events the publisher gave up on, typically receipt
// emails that need manual resend and order events downstream never saw.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// DLQFilter narrows List. Zero values match everything.
type DLQFilter struct {
	EventType  enums.OutboxEventType
	RegisterID string
	Since      time.Time
	Limit      int
}

// List returns dead-lettered events, newest first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDLQListed
	}
	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.RegisterID != "" {
		q = q.Where("register_id = ?", filter.RegisterID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("failed_at >= ?", filter.Since.UTC())
	}
	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func truncateDLQError(message string) string {
	if len(message) <= maxDLQErrorLen {
		return message
	}
	// a rune split by the byte cut is dropped
	return strings.ToValidUTF8(message[:maxDLQErrorLen], "")
}
